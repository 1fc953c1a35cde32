package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pricepipe/internal/tracking"
)

// RunService exposes the experiment tracking store to the transport layer.
type RunService struct {
	tracker *tracking.Store
	logger  *slog.Logger
}

// NewRunService creates a run service backed by the given store.
func NewRunService(tracker *tracking.Store, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunService{tracker: tracker, logger: logger}
}

// GetRun returns one run with its parameters and metrics.
func (s *RunService) GetRun(ctx context.Context, id string) (*tracking.Run, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}

	run, err := s.tracker.GetRun(id)
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunService) ListRuns(ctx context.Context, limit int) ([]*tracking.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	runs, err := s.tracker.ListRuns(limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// ListModels returns registered models, newest first. An empty runID
// lists models across all runs.
func (s *RunService) ListModels(ctx context.Context, runID string) ([]*tracking.Model, error) {
	var (
		models []*tracking.Model
		err    error
	)
	if runID == "" {
		models, err = s.tracker.AllModels()
	} else {
		models, err = s.tracker.ListModels(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return models, nil
}

// GetModel returns one registered model.
func (s *RunService) GetModel(ctx context.Context, id int64) (*tracking.Model, error) {
	model, err := s.tracker.GetModel(id)
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("loading model %d: %w", id, err)
	}
	return model, nil
}

// ProductionModel returns the model currently serving production, if any.
func (s *RunService) ProductionModel(ctx context.Context) (*tracking.Model, error) {
	model, err := s.tracker.LatestModel(tracking.StageProduction)
	if err != nil {
		if errors.Is(err, tracking.ErrNotFound) {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("loading production model: %w", err)
	}
	return model, nil
}
