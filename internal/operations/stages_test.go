package operations_test

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/config"
	"pricepipe/internal/operations"
	"pricepipe/internal/operations/testutil"
	"pricepipe/internal/regress"
	"pricepipe/internal/tracking"
)

// writeHouseCSV writes a synthetic house price dataset where the price
// is a noisy linear function of sqft and bedrooms.
func writeHouseCSV(t *testing.T, path string, rows int) {
	t.Helper()
	rng := rand.New(rand.NewSource(7))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	fmt.Fprintln(f, "price,sqft,bedrooms,neighborhood")
	hoods := []string{"oak", "elm", "pine"}
	for i := 0; i < rows; i++ {
		sqft := 900 + rng.Float64()*2100
		beds := float64(1 + rng.Intn(4))
		price := 50000 + 120*sqft + 15000*beds + rng.NormFloat64()*5000
		hood := hoods[rng.Intn(len(hoods))]
		if i%17 == 0 {
			// sprinkle missing cells
			fmt.Fprintf(f, "%.0f,,%.0f,%s\n", price, beds, hood)
			continue
		}
		fmt.Fprintf(f, "%.0f,%.1f,%.0f,%s\n", price, sqft, beds, hood)
	}
}

type pipelineEnv struct {
	deps    operations.StageDeps
	tracker *tracking.Store
	source  string
	dir     string
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	dir := t.TempDir()

	source := filepath.Join(dir, "houses.csv")
	writeHouseCSV(t, source, 200)

	tracker, err := tracking.Open(filepath.Join(dir, "tracking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tracker.Close() })

	deps := operations.StageDeps{
		Paths: config.PathsConfig{
			DataDir:     dir,
			ArchiveFile: source,
			ModelsDir:   filepath.Join(dir, "models"),
			ReportsDir:  filepath.Join(dir, "reports"),
		},
		Pipeline: config.PipelineConfig{
			Target:          "price",
			TestRatio:       0.2,
			Seed:            42,
			Impute:          "median",
			OutlierMethod:   "zscore",
			OutlierStrategy: "remove",
			LogTarget:       true,
		},
		Tracker: tracker,
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	}

	return &pipelineEnv{deps: deps, tracker: tracker, source: source, dir: dir}
}

func TestTrainingPipelineEndToEnd(t *testing.T) {
	env := newPipelineEnv(t)

	hub := &testutil.MockWebSocketHub{}
	m := operations.NewManager(hub, nil, nil)
	require.NoError(t, operations.RegisterTrainingSteps(m, env.deps))

	run, err := env.tracker.CreateRun("run-1", "training")
	require.NoError(t, err)

	resp, err := m.Execute(context.Background(), operations.OperationRequest{
		ID: "op-train",
		Parameters: map[string]interface{}{
			"run_id": run.ID,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)

	for _, id := range []string{"ingest", "clean", "features", "outliers", "split", "train", "evaluate"} {
		require.Contains(t, resp.Steps, id)
		assert.Equal(t, operations.StepStatusCompleted, resp.Steps[id].Status, id)
	}

	// a staged model artifact was produced and registered
	model, err := env.tracker.LatestModel(tracking.StageStaging)
	require.NoError(t, err)

	artifact, err := regress.LoadArtifact(model.Path)
	require.NoError(t, err)
	assert.Equal(t, "price", artifact.Target)
	assert.True(t, artifact.LogTarget)
	assert.NotEmpty(t, artifact.FeatureNames)

	// metrics were logged against the run
	got, err := env.tracker.GetRun(run.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Metrics, "rmse")
	assert.Contains(t, got.Metrics, "r2")
	assert.Greater(t, got.Metrics["r2"], 0.8)
	assert.Equal(t, "median", got.Params["impute"])
}

func TestTrainingPipelineMissingTarget(t *testing.T) {
	env := newPipelineEnv(t)
	env.deps.Pipeline.Target = "asking_price"

	m := operations.NewManager(&testutil.MockWebSocketHub{}, nil, nil)
	require.NoError(t, operations.RegisterTrainingSteps(m, env.deps))

	resp, err := m.Execute(context.Background(), operations.OperationRequest{ID: "op-train"})
	require.Error(t, err)
	assert.Equal(t, operations.OperationStatusFailed, resp.Status)
	assert.Equal(t, operations.StepStatusFailed, resp.Steps["ingest"].Status)
}

func TestEDAPipeline(t *testing.T) {
	env := newPipelineEnv(t)

	m := operations.NewManager(&testutil.MockWebSocketHub{}, nil, nil)
	require.NoError(t, operations.RegisterEDASteps(m, env.deps))

	resp, err := m.Execute(context.Background(), operations.OperationRequest{ID: "op-eda"})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)

	_, err = os.Stat(filepath.Join(env.deps.Paths.ReportsDir, "eda.csv"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(env.deps.Paths.ReportsDir, "eda.xlsx"))
	require.NoError(t, err)
}

func TestDeployPipelinePromotesLatestStaged(t *testing.T) {
	env := newPipelineEnv(t)

	// train first so a staged model exists
	trainer := operations.NewManager(&testutil.MockWebSocketHub{}, nil, nil)
	require.NoError(t, operations.RegisterTrainingSteps(trainer, env.deps))
	_, err := env.tracker.CreateRun("run-1", "training")
	require.NoError(t, err)
	_, err = trainer.Execute(context.Background(), operations.OperationRequest{
		ID:         "op-train",
		Parameters: map[string]interface{}{"run_id": "run-1"},
	})
	require.NoError(t, err)

	deployer := operations.NewManager(&testutil.MockWebSocketHub{}, nil, nil)
	require.NoError(t, operations.RegisterDeploySteps(deployer, env.deps))

	resp, err := deployer.Execute(context.Background(), operations.OperationRequest{ID: "op-deploy"})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)

	prod, err := env.tracker.LatestModel(tracking.StageProduction)
	require.NoError(t, err)
	assert.Equal(t, "run-1", prod.RunID)

	_, err = os.Stat(filepath.Join(env.deps.Paths.ModelsDir, "production.json"))
	require.NoError(t, err)
}

func TestDeployPipelineWithoutModels(t *testing.T) {
	env := newPipelineEnv(t)

	m := operations.NewManager(&testutil.MockWebSocketHub{}, nil, nil)
	require.NoError(t, operations.RegisterDeploySteps(m, env.deps))

	resp, err := m.Execute(context.Background(), operations.OperationRequest{ID: "op-deploy"})
	require.Error(t, err)
	assert.Equal(t, operations.OperationStatusFailed, resp.Status)
}

func TestTrainingPipelineParameterOverrides(t *testing.T) {
	env := newPipelineEnv(t)

	m := operations.NewManager(&testutil.MockWebSocketHub{}, nil, nil)
	require.NoError(t, operations.RegisterTrainingSteps(m, env.deps))

	_, err := env.tracker.CreateRun("run-ovr", "override")
	require.NoError(t, err)

	resp, err := m.Execute(context.Background(), operations.OperationRequest{
		ID: "op-train",
		Parameters: map[string]interface{}{
			"run_id":     "run-ovr",
			"impute":     "mean",
			"test_ratio": 0.3,
			"log_target": false,
			"ridge":      0.5,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)

	got, err := env.tracker.GetRun("run-ovr")
	require.NoError(t, err)
	assert.Equal(t, "mean", got.Params["impute"])
	assert.Equal(t, "0.3", got.Params["test_ratio"])
	assert.Equal(t, "false", got.Params["log_target"])
}
