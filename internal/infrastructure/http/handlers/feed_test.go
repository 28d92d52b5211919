package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	"github.com/alchemorsel/pantry/internal/infrastructure/events"
	"github.com/alchemorsel/pantry/internal/infrastructure/http/middleware"
)

func TestFeedHandler_StreamsOwnEvents(t *testing.T) {
	hub := events.NewHub(4, zap.NewNop())
	userID := uuid.New()
	feed := NewFeedHandler(hub, zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		feed.ServeWS(w, r.WithContext(middleware.WithUserID(r.Context(), userID)))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers(userID) == 1 }, time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, pantry.EntryUpdatedEvent{
		UserID:     uuid.New(),
		Ingredient: "salt",
		Amount:     decimal.NewFromInt(1),
		Unit:       "g",
		Reason:     pantry.ReasonCooked,
		UpdatedAt:  time.Now(),
	}))
	require.NoError(t, hub.Publish(ctx, pantry.EntryUpdatedEvent{
		UserID:     userID,
		Ingredient: "flour",
		Amount:     decimal.NewFromInt(250),
		Unit:       "g",
		Reason:     pantry.ReasonCooked,
		UpdatedAt:  time.Now(),
	}))

	var envelope struct {
		Type string                 `json:"type"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&envelope))

	assert.Equal(t, pantry.EntryUpdatedEvent{}.EventName(), envelope.Type)
	assert.Equal(t, userID.String(), envelope.Data["user_id"])
	assert.Equal(t, "flour", envelope.Data["ingredient"])

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFeedHandler_RequiresUser(t *testing.T) {
	feed := NewFeedHandler(events.NewHub(1, zap.NewNop()), zap.NewNop())
	rec := httptest.NewRecorder()

	feed.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pantry/ws", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
