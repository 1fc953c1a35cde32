package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"pricepipe/internal/services"
)

// RFC 3339 with second precision, matching the tracking store.
const timeFormat = time.RFC3339

// HealthService is the slice of services.HealthService the handler
// depends on.
type HealthService interface {
	Check(ctx context.Context) *services.HealthStatus
	Ready(ctx context.Context) bool
}

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	service HealthService
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service HealthService, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// Routes returns a chi router for health endpoints
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetHealth)
	r.Get("/ready", h.GetReadiness)

	return r
}

// GetHealth handles GET /api/health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := h.service.Check(r.Context())
	if status.Status != "healthy" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// GetReadiness handles GET /api/health/ready
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.service.Ready(r.Context()) {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]string{"status": "not ready"})
		return
	}
	render.JSON(w, r, map[string]string{"status": "ready"})
}
