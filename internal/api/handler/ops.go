// Package handler provides HTTP handlers for the GreenStack control API.
package handler

import (
	"net/http"
	"time"

	"github.com/greenstack/greenstack/internal/api/models"
	"github.com/greenstack/greenstack/internal/api/response"
	"github.com/greenstack/greenstack/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	deviceURL string
	registry  *resilience.Registry
}

// NewOpsHandler creates a new OpsHandler. registry may be nil, in which
// case the status lists no endpoints.
func NewOpsHandler(version, buildTime, deviceURL string, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		deviceURL: deviceURL,
		registry:  registry,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - health of each device endpoint.
// The overall status is OK when every endpoint answered its last call, FAIL
// when none did, and DEGRADED in between.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		DeviceURL: h.deviceURL,
		Endpoints: []models.EndpointStatus{},
	}

	if h.registry != nil {
		failing := 0
		for _, eh := range h.registry.GetAllHealth() {
			es := endpointStatus(eh)
			if es.Status != models.HealthStatusOK {
				failing++
			}
			status.Endpoints = append(status.Endpoints, es)
		}

		switch {
		case failing == 0:
		case failing == len(status.Endpoints):
			status.Status = models.HealthStatusFail
		default:
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func endpointStatus(eh *resilience.EndpointHealth) models.EndpointStatus {
	es := models.EndpointStatus{
		Endpoint:      eh.Name,
		Status:        models.HealthStatusOK,
		CircuitState:  eh.CircuitState.String(),
		Successes:     eh.Successes,
		Failures:      eh.Failures,
		LastSuccessAt: models.TimestampPtr(eh.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(eh.LastFailureAt),
	}

	switch {
	case eh.IsDegraded():
		es.Status = models.HealthStatusDegraded
	case !eh.IsHealthy():
		es.Status = models.HealthStatusFail
	}

	if eh.LastError != "" {
		msg := eh.LastError
		es.Message = &msg
	}
	return es
}
