package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Start()
	t.Cleanup(hub.Stop)
	return hub
}

func registerTestClient(t *testing.T, hub *Hub) *Client {
	t.Helper()
	client := NewClientWithConnection(hub, NewMockConnection(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Register(client)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)
	return client
}

func TestHubRegisterSendsConnectionMessage(t *testing.T) {
	hub := newTestHub(t)
	client := registerTestClient(t, hub)

	select {
	case raw := <-client.send:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, TypeConnection, msg["type"])
		data := msg["data"].(map[string]interface{})
		assert.Equal(t, "connected", data["status"])
		assert.Equal(t, client.id, data["client_id"])
	case <-time.After(time.Second):
		t.Fatal("no connection message received")
	}
}

func TestHubBroadcastUpdateReachesClients(t *testing.T) {
	hub := newTestHub(t)
	client := registerTestClient(t, hub)
	<-client.send // connection message

	hub.BroadcastUpdate(TypeSnapshot, "", "", map[string]interface{}{
		"operation_id": "op-1",
		"status":       "running",
	})

	select {
	case raw := <-client.send:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, TypeSnapshot, msg["type"])
		data := msg["data"].(map[string]interface{})
		assert.Equal(t, "op-1", data["operation_id"])
		// snapshot events do not carry top-level step/status
		assert.NotContains(t, msg, "step")
	case <-time.After(time.Second):
		t.Fatal("broadcast not received")
	}
}

func TestHubBroadcastNonSnapshotCarriesStepAndStatus(t *testing.T) {
	hub := newTestHub(t)
	client := registerTestClient(t, hub)
	<-client.send

	hub.BroadcastUpdate("operation:progress", "train", "running", nil)

	select {
	case raw := <-client.send:
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "train", msg["step"])
		assert.Equal(t, "running", msg["status"])
	case <-time.After(time.Second):
		t.Fatal("broadcast not received")
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := newTestHub(t)
	client := registerTestClient(t, hub)
	<-client.send

	hub.unregister <- client

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)

	_, open := <-client.send
	assert.False(t, open)
}

func TestHubStopIsIdempotent(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Start()
	hub.Stop()
	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubStats(t *testing.T) {
	hub := newTestHub(t)
	registerTestClient(t, hub)

	stats := hub.Stats()
	assert.Equal(t, 1, stats["active_clients"])
	assert.Equal(t, int64(1), stats["total_connections"])
}
