// Package handler provides HTTP handlers for the aire API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/aire-xalapa/aire/internal/api/models"
	"github.com/aire-xalapa/aire/internal/api/response"
	"github.com/aire-xalapa/aire/internal/provider/resilience"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds the dependencies of the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// DB is pinged by the readiness and status checks. Optional.
	DB Pinger

	// Registry reports upstream provider health (default: resilience.GlobalRegistry).
	Registry *resilience.Registry
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	registry  *resilience.Registry
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	registry := cfg.Registry
	if registry == nil {
		registry = resilience.GlobalRegistry
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		db:        cfg.DB,
		registry:  registry,
		now:       time.Now,
	}
}

// HealthCheck handles GET /api/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:    models.HealthStatusOK,
		Timestamp: models.Timestamp(h.now()),
	})
}

// ReadinessCheck handles GET /api/ready - the service can reach its database.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status:    models.HealthStatusOK,
		Timestamp: models.Timestamp(h.now()),
	}

	if err := h.pingDB(r.Context()); err != nil {
		ready.Status = models.HealthStatusDown
		ready.Details = map[string]string{"database": err.Error()}
		response.JSON(w, r, http.StatusServiceUnavailable, ready)
		return
	}
	response.JSON(w, r, http.StatusOK, ready)
}

// SystemStatus handles GET /api/status - database and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Timestamp: models.Timestamp(h.now()),
		Version:   h.version,
		BuildTime: h.buildTime,
	}

	db := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
	if err := h.pingDB(r.Context()); err != nil {
		msg := err.Error()
		db.Status = models.HealthStatusDown
		db.Detail = &msg
		status.Status = models.HealthStatusDown
	}
	status.Subsystems = []models.SubsystemStatus{db}

	status.Providers = []models.ProviderStatus{}
	for _, health := range h.registry.All() {
		ps := models.ProviderStatus{
			Provider:            health.Name,
			Dataset:             health.Dataset,
			Status:              models.HealthStatus(health.Status()),
			FallbackActive:      health.FallbackActive(),
			ConsecutiveFailures: health.Counts.ConsecutiveFailures,
			LastSuccessAt:       models.OptionalTimestamp(health.LastSuccessAt),
			LastFailureAt:       models.OptionalTimestamp(health.LastFailureAt),
			OpenUntil:           models.OptionalTimestamp(health.OpenUntil),
		}
		if health.LastError != "" {
			msg := health.LastError
			ps.Message = &msg
		}
		status.Providers = append(status.Providers, ps)
	}

	// A tripped provider degrades the service; only the database takes it down.
	status.Status = models.Worst(status.Status, models.HealthStatus(h.registry.Overall()))

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) pingDB(ctx context.Context) error {
	if h.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.Ping(ctx)
}
