package operations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/operations"
	"pricepipe/internal/operations/testutil"
)

func mockStep(id string, deps ...string) *testutil.MockStage {
	return &testutil.MockStage{
		IDValue:           id,
		NameValue:         id,
		DependenciesValue: deps,
	}
}

func TestRegistryRegister(t *testing.T) {
	r := operations.NewRegistry()

	require.NoError(t, r.Register(mockStep("ingest")))
	assert.True(t, r.Has("ingest"))
	assert.Equal(t, 1, r.Count())

	err := r.Register(mockStep("ingest"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRegisterNil(t *testing.T) {
	r := operations.NewRegistry()
	require.Error(t, r.Register(nil))
}

func TestRegistryGet(t *testing.T) {
	r := operations.NewRegistry()
	require.NoError(t, r.Register(mockStep("clean")))

	step, err := r.Get("clean")
	require.NoError(t, err)
	assert.Equal(t, "clean", step.ID())

	_, err = r.Get("missing")
	require.Error(t, err)
}

func TestDependencyOrder(t *testing.T) {
	r := operations.NewRegistry()
	// registered out of order on purpose
	require.NoError(t, r.Register(mockStep("train", "split")))
	require.NoError(t, r.Register(mockStep("split", "clean")))
	require.NoError(t, r.Register(mockStep("ingest")))
	require.NoError(t, r.Register(mockStep("clean", "ingest")))

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)

	ids := make([]string, len(ordered))
	for i, step := range ordered {
		ids[i] = step.ID()
	}
	assert.Equal(t, []string{"ingest", "clean", "split", "train"}, ids)
}

func TestDependencyOrderRegistrationTiebreak(t *testing.T) {
	r := operations.NewRegistry()
	require.NoError(t, r.Register(mockStep("a")))
	require.NoError(t, r.Register(mockStep("b")))
	require.NoError(t, r.Register(mockStep("c")))

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)

	ids := make([]string, len(ordered))
	for i, step := range ordered {
		ids[i] = step.ID()
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestDependencyOrderCycle(t *testing.T) {
	r := operations.NewRegistry()
	require.NoError(t, r.Register(mockStep("a", "b")))
	require.NoError(t, r.Register(mockStep("b", "a")))

	_, err := r.GetDependencyOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestDependencyOrderMissingDependency(t *testing.T) {
	r := operations.NewRegistry()
	require.NoError(t, r.Register(mockStep("train", "split")))

	_, err := r.GetDependencyOrder()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}
