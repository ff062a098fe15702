package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenstack/greenstack/internal/api"
	"github.com/greenstack/greenstack/internal/api/middleware"
	"github.com/greenstack/greenstack/internal/api/models"
	"github.com/greenstack/greenstack/internal/clock"
	"github.com/greenstack/greenstack/internal/dashboard"
	"github.com/greenstack/greenstack/internal/device"
	"github.com/greenstack/greenstack/internal/page"
	"github.com/greenstack/greenstack/internal/provider/resilience"
)

// fakeDevice answers the device API; paths not in replies get a 500.
type fakeDevice struct {
	mu      sync.Mutex
	replies map[string]string
	hits    map[string]int
	bodies  map[string][]byte
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		replies: map[string]string{
			"/temperature":    `{"temp":21}`,
			"/humidity":       `{"humidity":48}`,
			"/soilmoisture":   `{"soilmoisture":"moist"}`,
			"/pump_on":        "ok",
			"/wifi/status":    `{"connected":true,"ssid":"garden","rssi":-55}`,
			"/wifi/connect":   `{"success":true,"message":"Connected"}`,
			"/wifi/toggle_ap": `{"success":false,"message":"busy"}`,
		},
		hits:   make(map[string]int),
		bodies: make(map[string][]byte),
	}
}

func (f *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.bodies[r.URL.Path] = body
	reply, ok := f.replies[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(reply))
}

func (f *fakeDevice) remove(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.replies, path)
}

func (f *fakeDevice) body(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.bodies[path])
}

func (f *fakeDevice) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

type testEnv struct {
	router   http.Handler
	dev      *fakeDevice
	dash     *dashboard.Dashboard
	registry *resilience.Registry
}

func newTestEnv(t *testing.T, actionLimit middleware.RateLimitConfig) *testEnv {
	t.Helper()

	dev := newFakeDevice()
	server := httptest.NewServer(dev)
	t.Cleanup(server.Close)

	registry := resilience.NewRegistry()
	client := device.NewClient(device.ClientConfig{
		BaseURL:  server.URL,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})

	dash := dashboard.New(dashboard.Config{
		Device: client,
		Clock:  clock.NewFake(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)),
		Logger: zerolog.Nop(),
	})
	t.Cleanup(dash.Close)

	router := api.NewRouter(api.RouterConfig{
		Version:         "test",
		BuildTime:       "2025-06-01T00:00:00Z",
		Logger:          zerolog.New(io.Discard),
		Dashboard:       dash,
		Registry:        registry,
		DeviceURL:       server.URL,
		ActionRateLimit: actionLimit,
	})

	return &testEnv{router: router, dev: dev, dash: dash, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) models.ActionResult {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result models.ActionResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	return result
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	rec := e.do(t, http.MethodGet, "/v1/ops/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestSystemStatus(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	var status models.SystemStatus
	rec := e.do(t, http.MethodGet, "/v1/ops/status", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Len(t, status.Endpoints, len(device.Endpoints))

	e.dev.remove("/pump_on")
	decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/pump", nil))

	rec = e.do(t, http.MethodGet, "/v1/ops/status", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, models.HealthStatusDegraded, status.Status)

	for _, es := range status.Endpoints {
		if es.Endpoint != device.EndpointPumpOn {
			assert.Equal(t, models.HealthStatusOK, es.Status, es.Endpoint)
			continue
		}
		assert.Equal(t, models.HealthStatusFail, es.Status)
		assert.Equal(t, int64(1), es.Failures)
		assert.NotNil(t, es.LastFailureAt)
		require.NotNil(t, es.Message)
		assert.Equal(t, "closed", es.CircuitState)
	}
}

func TestGetDashboard(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	rec := e.do(t, http.MethodGet, "/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Dashboard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "--", got.Page.Text(page.Temperature))
	assert.Equal(t, "Water Plant", got.Page.Text(page.PumpButton))
}

func TestTriggerPump(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	result := decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/pump", nil))
	assert.True(t, result.OK)
	assert.Equal(t, "pump", result.Action)
	pump, _ := result.Page.Element(page.PumpButton)
	assert.Equal(t, "⏳ Watering...", pump.Label())
	assert.True(t, pump.Disabled)
	assert.Equal(t, 1, e.dev.count("/pump_on"))

	result = decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/pump", nil))
	assert.False(t, result.OK, "the button is disabled while watering")
	assert.Equal(t, dashboard.ErrControlDisabled.Error(), result.Error)
	assert.Equal(t, 1, e.dev.count("/pump_on"))
}

func TestTriggerPump_DeviceFailure(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})
	e.dev.remove("/pump_on")

	result := decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/pump", nil))

	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, dashboard.ErrorText, result.Page.Text(page.PumpButton))
}

func TestWiFiFlow(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	result := decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/wifi/open", nil))
	assert.True(t, result.OK)
	assert.True(t, result.Page.ScrollLocked)
	assert.Equal(t, "Connected to: garden (-55 dBm)", result.Page.Text(page.WiFiStatusText))

	result = decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/wifi/connect",
		models.ConnectRequest{SSID: "garden", Password: "hunter2"}))
	assert.True(t, result.OK)
	assert.Equal(t, "LETS GOO!", result.Page.Text(page.ConnectButton))
	assert.JSONEq(t, `{"ssid":"garden","password":"hunter2"}`, e.dev.body("/wifi/connect"))

	result = decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/wifi/toggle-ap", nil))
	assert.True(t, result.OK, "a refusal is shown on the page, not raised")
	assert.Equal(t, "Failed", result.Page.Text(page.APButton))
	assert.Contains(t, result.Page.Alerts, "AP mode toggle failed: busy")

	result = decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/click", models.ClickRequest{Target: page.WiFiModal}))
	assert.False(t, result.Page.ScrollLocked)
}

func TestConnectWiFi_EmptySSID(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	result := decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/wifi/connect", models.ConnectRequest{}))

	assert.False(t, result.OK)
	assert.Equal(t, []string{"Please enter a network name"}, result.Page.Alerts)
	assert.Zero(t, e.dev.count("/wifi/connect"))
}

func TestClick_Validation(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	rec := e.do(t, http.MethodPost, "/v1/dashboard/click", models.ClickRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = e.do(t, http.MethodPost, "/v1/dashboard/click", models.ClickRequest{Target: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/dashboard/click", map[string]string{"element": "ssid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestTheme(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	result := decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/theme/toggle", nil))
	assert.Equal(t, dashboard.ThemeLight, result.Page.Theme)
	assert.Equal(t, dashboard.ThemeLight, e.dash.GetThemeFromCookie())

	result = decodeResult(t, e.do(t, http.MethodPut, "/v1/dashboard/theme", models.ThemeRequest{Theme: dashboard.ThemeDark}))
	assert.Equal(t, dashboard.ThemeDark, result.Page.Theme)
	assert.Equal(t, dashboard.IconDark, result.Page.Text(page.ThemeIcon))

	rec := e.do(t, http.MethodPut, "/v1/dashboard/theme", models.ThemeRequest{Theme: "solarized"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTogglePasswordAndClose(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	result := decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/wifi/password-visibility", nil))
	password, _ := result.Page.Element(page.PasswordInput)
	assert.Equal(t, page.InputText, password.InputType)

	decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/wifi/open", nil))
	result = decodeResult(t, e.do(t, http.MethodPost, "/v1/dashboard/wifi/close", nil))
	modal, _ := result.Page.Element(page.WiFiModal)
	assert.Equal(t, page.DisplayNone, modal.Display)
}

func TestRequireJSON(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	req := httptest.NewRequest(http.MethodPost, "/v1/dashboard/click", bytes.NewBufferString("target=ssid"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestNotFound(t *testing.T) {
	e := newTestEnv(t, middleware.RateLimitConfig{})

	rec := e.do(t, http.MethodGet, "/v1/greenhouse", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = e.do(t, http.MethodDelete, "/v1/dashboard/pump", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActionRateLimit(t *testing.T) {
	e := newTestEnv(t, middleware.PerMinute(2))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/v1/dashboard/pump", nil).Code)
	}
	rec := e.do(t, http.MethodPost, "/v1/dashboard/pump", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, e.dev.count("/pump_on"), "the disabled button and the limiter keep later requests off the device")

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/v1/dashboard", nil).Code, "reads are limited separately")
}
