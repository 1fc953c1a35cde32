package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepipe/internal/services"
)

type mockOperationService struct {
	startFunc  func(ctx context.Context, kind services.OperationKind, params map[string]interface{}) (*services.OperationStatus, error)
	getFunc    func(ctx context.Context, id string) (*services.OperationStatus, error)
	listFunc   func(ctx context.Context) []*services.OperationStatus
	cancelFunc func(ctx context.Context, id string) error
}

func (m *mockOperationService) StartOperation(ctx context.Context, kind services.OperationKind, params map[string]interface{}) (*services.OperationStatus, error) {
	return m.startFunc(ctx, kind, params)
}

func (m *mockOperationService) GetOperation(ctx context.Context, id string) (*services.OperationStatus, error) {
	return m.getFunc(ctx, id)
}

func (m *mockOperationService) ListOperations(ctx context.Context) []*services.OperationStatus {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil
}

func (m *mockOperationService) CancelOperation(ctx context.Context, id string) error {
	return m.cancelFunc(ctx, id)
}

func (m *mockOperationService) Kinds() []services.OperationKind {
	return []services.OperationKind{services.OperationDeploy, services.OperationEDA, services.OperationTraining}
}

func newOperationsServer(svc OperationService) *httptest.Server {
	h := NewOperationsHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return httptest.NewServer(h.Routes())
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestStartOperationAccepted(t *testing.T) {
	var gotKind services.OperationKind
	var gotParams map[string]interface{}

	svc := &mockOperationService{
		startFunc: func(ctx context.Context, kind services.OperationKind, params map[string]interface{}) (*services.OperationStatus, error) {
			gotKind = kind
			gotParams = params
			return &services.OperationStatus{
				ID:        "op-1",
				Kind:      kind,
				Status:    "running",
				StartedAt: time.Now(),
			}, nil
		},
	}
	srv := newOperationsServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/", map[string]interface{}{
		"kind": "training",
		"parameters": map[string]interface{}{
			"test_ratio": 0.3,
		},
	})

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "op-1", body["id"])
	assert.Equal(t, services.OperationTraining, gotKind)
	assert.Equal(t, 0.3, gotParams["test_ratio"])
}

func TestStartOperationStepParameter(t *testing.T) {
	var gotParams map[string]interface{}
	svc := &mockOperationService{
		startFunc: func(ctx context.Context, kind services.OperationKind, params map[string]interface{}) (*services.OperationStatus, error) {
			gotParams = params
			return &services.OperationStatus{ID: "op-1", Kind: kind, Status: "running"}, nil
		},
	}
	srv := newOperationsServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/", map[string]interface{}{
		"kind": "training",
		"step": "ingest",
	})
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "ingest", gotParams["step"])
}

func TestStartOperationInvalidKind(t *testing.T) {
	srv := newOperationsServer(&mockOperationService{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/", map[string]interface{}{"kind": "backfill"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["error_code"])
}

func TestStartOperationMissingKind(t *testing.T) {
	srv := newOperationsServer(&mockOperationService{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/", map[string]interface{}{})
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOperationNotFound(t *testing.T) {
	svc := &mockOperationService{
		getFunc: func(ctx context.Context, id string) (*services.OperationStatus, error) {
			return nil, services.ErrOperationNotFound
		},
	}
	srv := newOperationsServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetOperation(t *testing.T) {
	svc := &mockOperationService{
		getFunc: func(ctx context.Context, id string) (*services.OperationStatus, error) {
			return &services.OperationStatus{ID: id, Kind: services.OperationEDA, Status: "completed"}, nil
		},
	}
	srv := newOperationsServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/op-9")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "op-9", body["id"])
	assert.Equal(t, "completed", body["status"])
}

func TestListOperations(t *testing.T) {
	svc := &mockOperationService{
		listFunc: func(ctx context.Context) []*services.OperationStatus {
			return []*services.OperationStatus{
				{ID: "op-2", Status: "running"},
				{ID: "op-1", Status: "completed"},
			}
		},
	}
	srv := newOperationsServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Len(t, body["operations"], 2)
}

func TestCancelOperation(t *testing.T) {
	var cancelled string
	svc := &mockOperationService{
		cancelFunc: func(ctx context.Context, id string) error {
			cancelled = id
			return nil
		},
	}
	srv := newOperationsServer(svc)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/op-3", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "op-3", cancelled)
}

func TestGetOperationTypes(t *testing.T) {
	srv := newOperationsServer(&mockOperationService{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/types")
	require.NoError(t, err)

	body := decodeBody(t, resp)
	assert.Len(t, body["types"], 3)
}
