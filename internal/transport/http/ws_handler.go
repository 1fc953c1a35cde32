package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"pricepipe/internal/config"
	"pricepipe/internal/infrastructure"
	"pricepipe/internal/middleware"
	ws "pricepipe/internal/websocket"
)

// WSHandler upgrades HTTP connections and hands clients to the hub.
type WSHandler struct {
	hub        *ws.Hub
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	clientOpts ws.Options
}

// NewWSHandler creates a websocket handler bound to the given hub, with
// buffer sizes and keepalive timing taken from the configuration.
func NewWSHandler(hub *ws.Hub, cfg config.WebSocketConfig, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("handler", "websocket"))

	return &WSHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			// Pipeline progress is not sensitive; the service binds to
			// localhost by default.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clientOpts: ws.Options{
			PongWait:   cfg.PongWait,
			PingPeriod: cfg.PingPeriod,
		},
	}
}

// ServeHTTP handles GET /ws
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := infrastructure.GetTraceID(ctx)
	if traceID == "" {
		traceID = middleware.GetReqID(ctx)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(ctx, "WebSocket upgrade failed",
			slog.String("error", err.Error()),
			slog.String("remote_addr", r.RemoteAddr))
		return
	}

	client := ws.NewClientWithTrace(h.hub, conn, traceID, h.clientOpts, h.logger)
	h.hub.Register(client)

	h.logger.InfoContext(ctx, "WebSocket client connected",
		slog.String("remote_addr", r.RemoteAddr))

	go client.WritePump()
	go client.ReadPump()
}
