package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/infrastructure/events"
	"github.com/alchemorsel/pantry/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantry/pkg/errors"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
)

// Subscriber hands out per-user event subscriptions
type Subscriber interface {
	Subscribe(userID uuid.UUID) *events.Subscription
}

// FeedHandler streams a user's pantry events over a websocket
type FeedHandler struct {
	hub      Subscriber
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewFeedHandler creates a new realtime feed handler
func NewFeedHandler(hub Subscriber, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.Named("pantry-feed"),
	}
}

// ServeWS handles GET /api/v1/pantry/ws
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(errors.ToErrorResponse(errors.NewUnauthorizedError(""), ""))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sub := h.hub.Subscribe(userID)
	h.logger.Info("Pantry feed connected", zap.String("user_id", userID.String()))

	done := make(chan struct{})
	go h.readPump(conn, done)
	h.writePump(conn, sub, done)

	sub.Close()
	_ = conn.Close()
	h.logger.Info("Pantry feed disconnected", zap.String("user_id", userID.String()))
}

// readPump discards client messages and closes done when the peer goes away
func (h *FeedHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *FeedHandler) writePump(conn *websocket.Conn, sub *events.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case envelope, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(envelope); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
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
