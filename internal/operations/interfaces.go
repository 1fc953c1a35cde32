package operations

// WebSocketHub is where the broadcaster publishes operation snapshots.
type WebSocketHub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}
