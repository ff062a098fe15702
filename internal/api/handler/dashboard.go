package handler

import (
	"context"
	"net/http"

	"github.com/greenstack/greenstack/internal/api/models"
	"github.com/greenstack/greenstack/internal/api/response"
	"github.com/greenstack/greenstack/internal/dashboard"
	"github.com/greenstack/greenstack/internal/page"
)

// Dashboard is the dashboard surface the control API drives.
type Dashboard interface {
	Page() *page.Page
	TriggerPump(ctx context.Context) error
	OpenWiFiConfig(ctx context.Context) error
	CloseWiFiConfig()
	Click(target string)
	CheckWiFiStatus(ctx context.Context) error
	SetCredentials(ssid, password string)
	ConnectWiFi(ctx context.Context) error
	ToggleAPMode(ctx context.Context) error
	TogglePassword()
	SetTheme(theme string) error
	ToggleTheme() error
}

// DashboardHandler exposes the page and its controls.
type DashboardHandler struct {
	dashboard Dashboard
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(d Dashboard) *DashboardHandler {
	return &DashboardHandler{dashboard: d}
}

// GetDashboard handles GET /v1/dashboard.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Dashboard{Page: h.dashboard.Page().Snapshot()})
}

// TriggerPump handles POST /v1/dashboard/pump.
func (h *DashboardHandler) TriggerPump(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "pump", h.dashboard.TriggerPump(r.Context()))
}

// OpenWiFi handles POST /v1/dashboard/wifi/open.
func (h *DashboardHandler) OpenWiFi(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "wifi.open", h.dashboard.OpenWiFiConfig(r.Context()))
}

// CloseWiFi handles POST /v1/dashboard/wifi/close.
func (h *DashboardHandler) CloseWiFi(w http.ResponseWriter, r *http.Request) {
	h.dashboard.CloseWiFiConfig()
	h.respond(w, r, "wifi.close", nil)
}

// Click handles POST /v1/dashboard/click.
func (h *DashboardHandler) Click(w http.ResponseWriter, r *http.Request) {
	var req models.ClickRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if req.Target == "" {
		response.BadRequest(w, r, "target is required", []models.FieldError{
			{Field: "target", Message: "required", Code: "REQUIRED"},
		})
		return
	}
	if _, ok := h.dashboard.Page().Get(req.Target); !ok {
		response.NotFound(w, r, "no element "+req.Target)
		return
	}

	h.dashboard.Click(req.Target)
	h.respond(w, r, "click", nil)
}

// CheckWiFiStatus handles POST /v1/dashboard/wifi/status.
func (h *DashboardHandler) CheckWiFiStatus(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "wifi.status", h.dashboard.CheckWiFiStatus(r.Context()))
}

// ConnectWiFi handles POST /v1/dashboard/wifi/connect. A body fills the
// modal's inputs first; without one the current inputs are submitted.
func (h *DashboardHandler) ConnectWiFi(w http.ResponseWriter, r *http.Request) {
	var req *models.ConnectRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if req != nil {
		h.dashboard.SetCredentials(req.SSID, req.Password)
	}
	h.respond(w, r, "wifi.connect", h.dashboard.ConnectWiFi(r.Context()))
}

// ToggleAP handles POST /v1/dashboard/wifi/toggle-ap.
func (h *DashboardHandler) ToggleAP(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "wifi.toggle-ap", h.dashboard.ToggleAPMode(r.Context()))
}

// TogglePassword handles POST /v1/dashboard/wifi/password-visibility.
func (h *DashboardHandler) TogglePassword(w http.ResponseWriter, r *http.Request) {
	h.dashboard.TogglePassword()
	h.respond(w, r, "wifi.password-visibility", nil)
}

// ToggleTheme handles POST /v1/dashboard/theme/toggle.
func (h *DashboardHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	if err := h.dashboard.ToggleTheme(); err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	h.respond(w, r, "theme.toggle", nil)
}

// SetTheme handles PUT /v1/dashboard/theme.
func (h *DashboardHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req models.ThemeRequest
	if err := response.Decode(r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if req.Theme != dashboard.ThemeDark && req.Theme != dashboard.ThemeLight {
		response.BadRequest(w, r, "theme must be dark or light", []models.FieldError{
			{Field: "theme", Message: "must be dark or light", Code: "INVALID_VALUE"},
		})
		return
	}
	if err := h.dashboard.SetTheme(req.Theme); err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	h.respond(w, r, "theme.set", nil)
}

// respond writes the action outcome with the page as it stands. A device
// failure is reported in the result, as it is on the page.
func (h *DashboardHandler) respond(w http.ResponseWriter, r *http.Request, action string, err error) {
	result := models.ActionResult{
		Action: action,
		OK:     err == nil,
		Page:   h.dashboard.Page().Snapshot(),
	}
	if err != nil {
		result.Error = err.Error()
	}
	response.JSON(w, r, http.StatusOK, result)
}
