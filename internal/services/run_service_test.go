package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/tracking"
)

func newTestRunService(t *testing.T) (*RunService, *tracking.Store) {
	t.Helper()
	tracker, err := tracking.Open(filepath.Join(t.TempDir(), "tracking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	return NewRunService(tracker, slog.New(slog.NewTextHandler(io.Discard, nil))), tracker
}

func TestRunServiceGetRun(t *testing.T) {
	svc, tracker := newTestRunService(t)

	_, err := tracker.CreateRun("run-1", "training")
	require.NoError(t, err)
	require.NoError(t, tracker.LogMetric("run-1", "r2", 0.91))

	run, err := svc.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "training", run.Name)
	assert.Equal(t, 0.91, run.Metrics["r2"])
}

func TestRunServiceGetRunNotFound(t *testing.T) {
	svc, _ := newTestRunService(t)

	_, err := svc.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = svc.GetRun(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRunServiceListRunsDefaultLimit(t *testing.T) {
	svc, tracker := newTestRunService(t)

	for _, id := range []string{"a", "b"} {
		_, err := tracker.CreateRun(id, "run")
		require.NoError(t, err)
	}

	runs, err := svc.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunServiceModels(t *testing.T) {
	svc, tracker := newTestRunService(t)

	_, err := tracker.CreateRun("run-1", "training")
	require.NoError(t, err)
	m, err := tracker.SaveModel("run-1", "/models/a.json")
	require.NoError(t, err)

	models, err := svc.ListModels(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, models, 1)

	got, err := svc.GetModel(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, "/models/a.json", got.Path)

	_, err = svc.GetModel(context.Background(), 99)
	assert.ErrorIs(t, err, ErrModelNotFound)

	_, err = svc.ProductionModel(context.Background())
	assert.ErrorIs(t, err, ErrModelNotFound)

	require.NoError(t, tracker.PromoteModel(m.ID))
	prod, err := svc.ProductionModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, m.ID, prod.ID)
}

func TestHealthServiceCheck(t *testing.T) {
	tracker, err := tracking.Open(filepath.Join(t.TempDir(), "tracking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	svc := NewHealthService("1.2.3", tracker, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	status := svc.Check(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Contains(t, status.Services, "tracking")
	assert.True(t, svc.Ready(context.Background()))
}
