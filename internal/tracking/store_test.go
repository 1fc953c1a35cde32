package tracking

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "tracking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "tracking.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.DB().Ping())
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	run, err := store.CreateRun("run-1", "baseline")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)

	require.NoError(t, store.LogParams("run-1", map[string]string{
		"target":     "price",
		"test_ratio": "0.2",
		"impute":     "median",
	}))
	require.NoError(t, store.LogParam("run-1", "impute", "mean"))

	require.NoError(t, store.LogMetrics("run-1", map[string]float64{
		"rmse": 41250.7,
		"r2":   0.83,
	}))
	require.NoError(t, store.LogMetric("run-1", "mae", 30122.4))

	require.NoError(t, store.FinishRun("run-1", ""))

	got, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFinished, got.Status)
	assert.Empty(t, got.Error)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, "mean", got.Params["impute"])
	assert.Equal(t, "0.2", got.Params["test_ratio"])
	assert.InDelta(t, 0.83, got.Metrics["r2"], 1e-9)
	assert.InDelta(t, 30122.4, got.Metrics["mae"], 1e-9)
}

func TestFinishRunFailed(t *testing.T) {
	store := openTestStore(t)

	_, err := store.CreateRun("run-err", "broken")
	require.NoError(t, err)
	require.NoError(t, store.FinishRun("run-err", "ingest: file not found"))

	got, err := store.GetRun("run-err")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "ingest: file not found", got.Error)
}

func TestFinishRunNotFound(t *testing.T) {
	store := openTestStore(t)

	err := store.FinishRun("missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRunNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.CreateRun(id, "run-"+id)
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	limited, err := store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestModelPromotion(t *testing.T) {
	store := openTestStore(t)

	_, err := store.CreateRun("run-1", "first")
	require.NoError(t, err)
	_, err = store.CreateRun("run-2", "second")
	require.NoError(t, err)

	m1, err := store.SaveModel("run-1", "models/run-1.json")
	require.NoError(t, err)
	assert.Equal(t, StageStaging, m1.Stage)

	m2, err := store.SaveModel("run-2", "models/run-2.json")
	require.NoError(t, err)

	require.NoError(t, store.PromoteModel(m1.ID))
	require.NoError(t, store.PromoteModel(m2.ID))

	prod, err := store.LatestModel(StageProduction)
	require.NoError(t, err)
	assert.Equal(t, m2.ID, prod.ID)
	assert.Equal(t, "models/run-2.json", prod.Path)

	archived, err := store.GetModel(m1.ID)
	require.NoError(t, err)
	assert.Equal(t, StageArchived, archived.Stage)
}

func TestPromoteModelNotFound(t *testing.T) {
	store := openTestStore(t)

	err := store.PromoteModel(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestModelEmptyStage(t *testing.T) {
	store := openTestStore(t)

	_, err := store.LatestModel(StageProduction)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListModels(t *testing.T) {
	store := openTestStore(t)

	_, err := store.CreateRun("run-1", "first")
	require.NoError(t, err)

	_, err = store.SaveModel("run-1", "models/a.json")
	require.NoError(t, err)
	m2, err := store.SaveModel("run-1", "models/b.json")
	require.NoError(t, err)

	models, err := store.ListModels("run-1")
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, m2.ID, models[0].ID)
}
