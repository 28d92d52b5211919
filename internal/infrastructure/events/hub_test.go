package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
)

func updatedEvent(userID uuid.UUID) pantry.EntryUpdatedEvent {
	return pantry.EntryUpdatedEvent{
		UserID:       userID,
		IngredientID: uuid.New(),
		Ingredient:   "flour",
		Amount:       decimal.NewFromInt(300),
		Unit:         "g",
		Reason:       pantry.ReasonCooked,
		UpdatedAt:    time.Now(),
	}
}

type unownedEvent struct{}

func (unownedEvent) EventName() string     { return "system.tick" }
func (unownedEvent) OccurredAt() time.Time { return time.Now() }

func TestHub_RoutesByOwner(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	alice, bob := uuid.New(), uuid.New()

	aliceSub := hub.Subscribe(alice)
	defer aliceSub.Close()
	bobSub := hub.Subscribe(bob)
	defer bobSub.Close()

	require.NoError(t, hub.Publish(context.Background(), updatedEvent(alice)))

	select {
	case env := <-aliceSub.C:
		assert.Equal(t, "pantry.entry.updated", env.Type)
		assert.NotEmpty(t, env.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case env := <-bobSub.C:
		t.Fatalf("unexpected event for other user: %+v", env)
	default:
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1, zap.NewNop())
	userID := uuid.New()
	sub := hub.Subscribe(userID)
	defer sub.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(context.Background(), updatedEvent(userID)))
	}

	assert.Equal(t, int64(2), hub.Dropped())
	assert.Len(t, sub.C, 1)
}

func TestHub_CloseUnsubscribes(t *testing.T) {
	hub := NewHub(1, zap.NewNop())
	userID := uuid.New()
	sub := hub.Subscribe(userID)
	assert.Equal(t, 1, hub.Subscribers(userID))

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.Subscribers(userID))
	_, open := <-sub.C
	assert.False(t, open)
	assert.NoError(t, hub.Publish(context.Background(), updatedEvent(userID)))
}

func TestHub_IgnoresUnownedEvents(t *testing.T) {
	hub := NewHub(1, zap.NewNop())

	assert.NoError(t, hub.Publish(context.Background(), unownedEvent{}))
}
