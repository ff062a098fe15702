// Package dashboard drives the device dashboard: it polls the sensors,
// triggers the pump, runs the WiFi configuration modal and keeps the theme
// preference, writing every outcome into a page model.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenstack/greenstack/internal/clock"
	"github.com/greenstack/greenstack/internal/device"
	"github.com/greenstack/greenstack/internal/page"
)

// Device is the subset of the device API the dashboard calls.
type Device interface {
	Temperature(ctx context.Context) (device.Reading, error)
	Humidity(ctx context.Context) (device.Reading, error)
	SoilMoisture(ctx context.Context) (device.Reading, error)
	PumpOn(ctx context.Context) error
	WiFiStatus(ctx context.Context) (*device.WiFiStatus, error)
	ConnectWiFi(ctx context.Context, creds device.Credentials) (*device.ActionResult, error)
	ToggleAP(ctx context.Context) (*device.ActionResult, error)
}

// Timing defaults.
const (
	DefaultPollInterval     = 2000 * time.Millisecond
	DefaultTransitionDelay  = 150 * time.Millisecond
	DefaultWateringDuration = 5000 * time.Millisecond
	DefaultErrorDuration    = 2000 * time.Millisecond
	DefaultWiFiActionDelay  = 2000 * time.Millisecond
)

// Config holds configuration for a Dashboard.
type Config struct {
	// Device is the device API client (required).
	Device Device

	// Page receives every update. If nil, a fresh page is created.
	Page *page.Page

	// Clock schedules polling and label restores. Default: the wall clock.
	Clock clock.Clock

	// Jar stores the theme cookie. Default: an in-memory jar.
	Jar CookieJar

	// PollInterval is the sensor polling period.
	// Default: 2000ms
	PollInterval time.Duration

	// TransitionDelay is how long a value card stays shrunk before the new
	// value is written.
	// Default: 150ms
	TransitionDelay time.Duration

	// WateringDuration is how long the pump button shows "Watering...".
	// Default: 5000ms
	WateringDuration time.Duration

	// ErrorDuration is how long the pump button shows "Error".
	// Default: 2000ms
	ErrorDuration time.Duration

	// WiFiActionDelay is how long connect and access point results stay on
	// screen before the modal reacts.
	// Default: 2000ms
	WiFiActionDelay time.Duration

	// OnReload is called each time the page reloads (optional).
	OnReload func()

	Logger zerolog.Logger
}

// Dashboard is one open dashboard page.
type Dashboard struct {
	device Device
	page   *page.Page
	timers *clock.Group
	jar    CookieJar
	config Config
	logger zerolog.Logger

	inflight sync.WaitGroup

	mu     sync.Mutex
	ctx    context.Context
	closed bool
}

// New creates a Dashboard. Nothing is fetched until Load.
func New(cfg Config) *Dashboard {
	if cfg.Page == nil {
		cfg.Page = page.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Jar == nil {
		cfg.Jar = NewMemoryJar(cfg.Clock.Now)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.TransitionDelay == 0 {
		cfg.TransitionDelay = DefaultTransitionDelay
	}
	if cfg.WateringDuration == 0 {
		cfg.WateringDuration = DefaultWateringDuration
	}
	if cfg.ErrorDuration == 0 {
		cfg.ErrorDuration = DefaultErrorDuration
	}
	if cfg.WiFiActionDelay == 0 {
		cfg.WiFiActionDelay = DefaultWiFiActionDelay
	}

	return &Dashboard{
		device: cfg.Device,
		page:   cfg.Page,
		timers: clock.NewGroup(cfg.Clock),
		jar:    cfg.Jar,
		config: cfg,
		logger: cfg.Logger.With().Str("component", "dashboard").Logger(),
		ctx:    context.Background(),
	}
}

// Page returns the page model the dashboard writes to.
func (d *Dashboard) Page() *page.Page {
	return d.page
}

// Load runs the page's load handlers: the theme is applied from the cookie,
// the three sensor pollers start with an immediate fetch each, and one WiFi
// status check is issued. Requests made on behalf of the page use ctx.
func (d *Dashboard) Load(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.closed = false
	d.mu.Unlock()

	d.InitializeTheme()
	d.startPollers()
	d.spawn(func(ctx context.Context) {
		_ = d.CheckWiFiStatus(ctx)
	})

	d.logger.Debug().Dur("interval", d.config.PollInterval).Msg("page loaded")
}

// Reload discards every pending timer, restores the initial markup and
// loads the page again.
func (d *Dashboard) Reload() {
	d.timers.StopAll()
	d.page.Reset()

	d.logger.Info().Int("reloads", d.page.Reloads()).Msg("page reloaded")

	if d.config.OnReload != nil {
		d.config.OnReload()
	}
	d.Load(d.context())
}

// Close stops every timer, as when the page is navigated away from.
// Requests already in flight are not cancelled; their results still land on
// the page model.
func (d *Dashboard) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.timers.StopAll()
}

// Wait blocks until every request started by the pollers or the load
// handler has completed.
func (d *Dashboard) Wait() {
	d.inflight.Wait()
}

// PendingTimers returns the number of scheduled timers.
func (d *Dashboard) PendingTimers() int {
	return d.timers.Live()
}

func (d *Dashboard) context() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

func (d *Dashboard) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// after schedules fn on the page's timers unless the page is closed.
func (d *Dashboard) after(delay time.Duration, fn func()) {
	if d.isClosed() {
		return
	}
	d.timers.AfterFunc(delay, fn)
}

// spawn runs fn on its own goroutine with the page's context.
func (d *Dashboard) spawn(fn func(ctx context.Context)) {
	ctx := d.context()
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		fn(ctx)
	}()
}
