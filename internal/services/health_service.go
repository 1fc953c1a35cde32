package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"pricepipe/internal/tracking"
)

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides liveness and readiness snapshots.
type HealthService struct {
	version    string
	tracker    *tracking.Store
	operations *OperationService
	hub        ClientCounter
	startTime  time.Time
	logger     *slog.Logger
}

// NewHealthService creates a health service with injected dependencies.
func NewHealthService(version string, tracker *tracking.Store, operations *OperationService, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:    version,
		tracker:    tracker,
		operations: operations,
		hub:        hub,
		startTime:  time.Now(),
		logger:     logger,
	}
}

// Check returns the current health snapshot. The overall status degrades
// when the tracking database is unreachable.
func (s *HealthService) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		},
		Services: map[string]interface{}{},
	}

	if s.tracker != nil {
		if err := s.tracker.DB().PingContext(ctx); err != nil {
			status.Status = "degraded"
			status.Services["tracking"] = map[string]interface{}{
				"status": "down",
				"error":  err.Error(),
			}
			s.logger.WarnContext(ctx, "tracking database unreachable",
				slog.String("error", err.Error()))
		} else {
			status.Services["tracking"] = map[string]interface{}{"status": "up"}
		}
	}

	if s.operations != nil {
		status.Services["operations"] = map[string]interface{}{
			"status": "up",
			"active": s.operations.ActiveCount(),
		}
	}

	if s.hub != nil {
		status.Services["websocket"] = map[string]interface{}{
			"status":  "up",
			"clients": s.hub.ClientCount(),
		}
	}

	return status
}

// Ready reports whether the service can accept work.
func (s *HealthService) Ready(ctx context.Context) bool {
	if s.tracker == nil {
		return true
	}
	return s.tracker.DB().PingContext(ctx) == nil
}
