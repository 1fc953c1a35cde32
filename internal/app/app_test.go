package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/infrastructure"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()

	content := fmt.Sprintf(`server:
  port: 18080
logging:
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

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	t.Cleanup(infrastructure.ResetLoggerForTesting)

	dir := t.TempDir()
	t.Setenv("PRICEPIPE_CONFIG", writeTestConfig(t, dir))

	application, err := NewApplication()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = application.Stop()
	})
	return application
}

func TestNewApplicationWiring(t *testing.T) {
	application := newTestApplication(t)

	assert.NotNil(t, application.Config)
	assert.NotNil(t, application.Logger)
	assert.NotNil(t, application.Tracker)
	assert.NotNil(t, application.WebSocketHub)
	assert.NotNil(t, application.OperationService)
	assert.NotNil(t, application.RunService)
	assert.NotNil(t, application.HealthService)
	require.NotNil(t, application.Server)
	assert.Equal(t, ":18080", application.Server.Addr)
}

func TestApplicationServesHealth(t *testing.T) {
	application := newTestApplication(t)

	server := httptest.NewServer(application.Server.Handler)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestApplicationStopIsIdempotent(t *testing.T) {
	application := newTestApplication(t)

	require.NoError(t, application.Stop())
	// Second stop only re-closes already closed resources.
	_ = application.Stop()
}
