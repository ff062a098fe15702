// Package api provides the GreenStack local control API.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/greenstack/greenstack/internal/api/handler"
	"github.com/greenstack/greenstack/internal/api/middleware"
	"github.com/greenstack/greenstack/internal/api/response"
	"github.com/greenstack/greenstack/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	Dashboard handler.Dashboard
	Registry  *resilience.Registry
	DeviceURL string

	// ActionRateLimit limits device-bound actions per client IP.
	// Default: middleware.ActionRateLimit. A zero RequestLimit with a
	// window set disables limiting.
	ActionRateLimit middleware.RateLimitConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	actionLimit := cfg.ActionRateLimit
	if actionLimit == (middleware.RateLimitConfig{}) {
		actionLimit = middleware.ActionRateLimit
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers
	r.Use(middleware.ContentTypeJSON)      // JSON content type
	r.Use(middleware.RequireJSON)          // JSON request bodies

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.Method+" "+r.URL.Path)
	})

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DeviceURL, cfg.Registry)
	dashboardHandler := handler.NewDashboardHandler(cfg.Dashboard)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.With(middleware.RateLimitByIP(middleware.ReadRateLimit)).Get("/", dashboardHandler.GetDashboard)

			// Page-only controls never reach the device.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(middleware.ReadRateLimit))
				r.Post("/click", dashboardHandler.Click)
				r.Post("/wifi/close", dashboardHandler.CloseWiFi)
				r.Post("/wifi/password-visibility", dashboardHandler.TogglePassword)
				r.Post("/theme/toggle", dashboardHandler.ToggleTheme)
				r.Put("/theme", dashboardHandler.SetTheme)
			})

			// Device-bound actions
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(actionLimit))
				r.Post("/pump", dashboardHandler.TriggerPump)
				r.Post("/wifi/open", dashboardHandler.OpenWiFi)
				r.Post("/wifi/status", dashboardHandler.CheckWiFiStatus)
				r.Post("/wifi/connect", dashboardHandler.ConnectWiFi)
				r.Post("/wifi/toggle-ap", dashboardHandler.ToggleAP)
			})
		})
	})

	return r
}
