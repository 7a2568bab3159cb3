package notify

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"rescue/pkg/requestcontext"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Subscriber is the part of Hub the websocket handler needs.
type Subscriber interface {
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
}

// WebsocketHandler streams live events to dashboard clients.
type WebsocketHandler struct {
	hub      Subscriber
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWebsocketHandler(hub Subscriber, logger *slog.Logger) *WebsocketHandler {
	return &WebsocketHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and forwards every event as a JSON text
// frame until the client goes away or the hub stops.
func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "websocket upgrade failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	defer conn.Close()

	events := h.hub.Subscribe()
	defer h.hub.Unsubscribe(events)

	h.logger.InfoContext(ctx, "notification subscriber attached",
		"user_id", requestcontext.UserID(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
	)

	// Reads are only needed to observe close frames and pongs.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case e, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				h.logger.DebugContext(ctx, "websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
