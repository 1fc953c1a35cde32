package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/config"
	"pricepipe/internal/infrastructure"
	"pricepipe/internal/operations/testutil"
	"pricepipe/internal/tracking"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	source := filepath.Join(dir, "houses.csv")
	writeTestCSV(t, source)

	cfg := config.Default()
	cfg.Paths.DataDir = dir
	cfg.Paths.ArchiveFile = source
	cfg.Paths.ModelsDir = filepath.Join(dir, "models")
	cfg.Paths.ReportsDir = filepath.Join(dir, "reports")
	cfg.Paths.TrackingDB = filepath.Join(dir, "tracking.db")
	cfg.Pipeline.Target = "price"
	return &cfg
}

func writeTestCSV(t *testing.T, path string) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	fmt.Fprintln(f, "price,sqft,bedrooms,neighborhood")
	hoods := []string{"oak", "elm"}
	for i := 0; i < 120; i++ {
		sqft := 800 + rng.Float64()*2000
		beds := float64(1 + rng.Intn(4))
		price := 40000 + 110*sqft + 12000*beds + rng.NormFloat64()*4000
		fmt.Fprintf(f, "%.0f,%.1f,%.0f,%s\n", price, sqft, beds, hoods[rng.Intn(len(hoods))])
	}
}

func newTestOperationService(t *testing.T) (*OperationService, *tracking.Store) {
	t.Helper()
	cfg := testConfig(t)

	tracker, err := tracking.Open(cfg.Paths.TrackingDB)
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewOperationService(cfg, tracker, &testutil.MockWebSocketHub{}, infrastructure.NewMetrics(), logger)
	require.NoError(t, err)
	return svc, tracker
}

func waitForFinish(t *testing.T, svc *OperationService, id string) *OperationStatus {
	t.Helper()
	var status *OperationStatus
	require.Eventually(t, func() bool {
		var err error
		status, err = svc.GetOperation(context.Background(), id)
		require.NoError(t, err)
		return status.FinishedAt != nil
	}, 30*time.Second, 50*time.Millisecond)
	return status
}

func TestParseOperationKind(t *testing.T) {
	for _, valid := range []string{"training", "eda", "deploy"} {
		kind, err := ParseOperationKind(valid)
		require.NoError(t, err)
		assert.Equal(t, OperationKind(valid), kind)
	}

	_, err := ParseOperationKind("backfill")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestStartTrainingOperation(t *testing.T) {
	svc, tracker := newTestOperationService(t)

	status, err := svc.StartOperation(context.Background(), OperationTraining, nil)
	require.NoError(t, err)
	assert.Equal(t, "running", status.Status)
	assert.NotEmpty(t, status.RunID)

	final := waitForFinish(t, svc, status.ID)
	assert.Equal(t, "completed", final.Status)
	assert.NotEmpty(t, final.Steps)

	run, err := tracker.GetRun(status.RunID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusFinished, run.Status)
	assert.Contains(t, run.Metrics, "rmse")
}

func TestStartEDAOperation(t *testing.T) {
	svc, _ := newTestOperationService(t)

	status, err := svc.StartOperation(context.Background(), OperationEDA, nil)
	require.NoError(t, err)
	assert.Empty(t, status.RunID)

	final := waitForFinish(t, svc, status.ID)
	assert.Equal(t, "completed", final.Status)
}

func TestStartOperationUnknownKind(t *testing.T) {
	svc, _ := newTestOperationService(t)

	_, err := svc.StartOperation(context.Background(), OperationKind("backfill"), nil)
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestDeployWithoutStagedModelFails(t *testing.T) {
	svc, _ := newTestOperationService(t)

	status, err := svc.StartOperation(context.Background(), OperationDeploy, nil)
	require.NoError(t, err)

	final := waitForFinish(t, svc, status.ID)
	assert.Equal(t, "failed", final.Status)
	assert.NotEmpty(t, final.Error)
}

func TestGetOperationNotFound(t *testing.T) {
	svc, _ := newTestOperationService(t)

	_, err := svc.GetOperation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestListOperationsNewestFirst(t *testing.T) {
	svc, _ := newTestOperationService(t)

	first, err := svc.StartOperation(context.Background(), OperationEDA, nil)
	require.NoError(t, err)
	waitForFinish(t, svc, first.ID)

	second, err := svc.StartOperation(context.Background(), OperationEDA, nil)
	require.NoError(t, err)
	waitForFinish(t, svc, second.ID)

	list := svc.ListOperations(context.Background())
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestRunRecordsStepMetrics(t *testing.T) {
	cfg := testConfig(t)
	tracker, err := tracking.Open(cfg.Paths.TrackingDB)
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	metrics := infrastructure.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewOperationService(cfg, tracker, &testutil.MockWebSocketHub{}, metrics, logger)
	require.NoError(t, err)

	status, err := svc.StartOperation(context.Background(), OperationTraining, nil)
	require.NoError(t, err)
	waitForFinish(t, svc, status.ID)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `pricepipe_step_duration_seconds_count{status="completed",step="ingest"}`)
	assert.Contains(t, body, `step="train"`)
}

func TestCancelFinishedOperation(t *testing.T) {
	svc, _ := newTestOperationService(t)

	status, err := svc.StartOperation(context.Background(), OperationEDA, nil)
	require.NoError(t, err)
	waitForFinish(t, svc, status.ID)

	err = svc.CancelOperation(context.Background(), status.ID)
	assert.ErrorIs(t, err, ErrOperationFinished)
}

func TestCancelUnknownOperation(t *testing.T) {
	svc, _ := newTestOperationService(t)

	err := svc.CancelOperation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestKinds(t *testing.T) {
	svc, _ := newTestOperationService(t)
	assert.Equal(t, []OperationKind{OperationDeploy, OperationEDA, OperationTraining}, svc.Kinds())
}
