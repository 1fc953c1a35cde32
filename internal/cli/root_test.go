package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/infrastructure"
)

// executeCommand runs a command with the given args and captures output.
func executeCommand(args ...string) (string, error) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeTestConfig writes a config file pointing all paths into dir.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	content := fmt.Sprintf(`logging:
  level: warn
  format: json
  output: stdout
paths:
  data_dir: %[1]s/data
  archive_file: %[1]s/data/archive.zip
  models_dir: %[1]s/models
  reports_dir: %[1]s/reports
  tracking_db: %[1]s/data/tracking.db
`, dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "run")
	assert.Contains(t, out, "eda")
	assert.Contains(t, out, "deploy")
	assert.Contains(t, out, "runs")
}

func TestGlobalFlags(t *testing.T) {
	root := NewRootCmd()

	formatFlag := root.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("frobnicate")
	assert.Error(t, err)
}

func TestRunsEmptyStore(t *testing.T) {
	t.Cleanup(infrastructure.ResetLoggerForTesting)

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	_, err := executeCommand("runs", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)

	// The tracking store is created on first open.
	_, statErr := os.Stat(filepath.Join(dir, "data", "tracking.db"))
	assert.NoError(t, statErr)
}

func TestRunSingleUnknownStepFails(t *testing.T) {
	t.Cleanup(infrastructure.ResetLoggerForTesting)

	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)

	_, err := executeCommand("run", "--step", "nope", "--config", cfgPath)
	assert.Error(t, err)
}
