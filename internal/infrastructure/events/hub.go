package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/internal/domain/shared"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
)

// Subscription receives one user's events until Close is called
type Subscription struct {
	UserID uuid.UUID
	C      <-chan Envelope

	ch   chan Envelope
	hub  *Hub
	once sync.Once
}

// Close detaches the subscription from the hub and closes C
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.unsubscribe(s) })
}

// Hub routes user events to that user's live subscribers.
// A subscriber that is not keeping up loses events rather than blocking publishers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]map[*Subscription]struct{}
	buffer  int
	dropped int64
	logger  *zap.Logger
}

var _ outbound.EventPublisher = (*Hub)(nil)

// NewHub creates a hub whose subscriptions buffer up to buffer events
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger.Named("event-hub"),
	}
}

// Subscribe registers a new subscriber for userID
func (h *Hub) Subscribe(userID uuid.UUID) *Subscription {
	ch := make(chan Envelope, h.buffer)
	sub := &Subscription{UserID: userID, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}

	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if set := h.subs[sub.UserID]; set != nil {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.UserID)
		}
	}
	close(sub.ch)
}

// Publish delivers event to the owner's subscribers.
// Events without an owner are ignored.
func (h *Hub) Publish(ctx context.Context, event shared.DomainEvent) error {
	owned, ok := event.(shared.UserEvent)
	if !ok {
		return nil
	}
	envelope := NewEnvelope(event)

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[owned.OwnerID()] {
		select {
		case sub.ch <- envelope:
		default:
			h.dropped++
			h.logger.Warn("Dropping event for slow subscriber",
				zap.String("user_id", sub.UserID.String()),
				zap.String("event", envelope.Type),
			)
		}
	}

	return nil
}

// Subscribers returns the number of live subscriptions for userID
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Dropped returns how many deliveries were skipped because a buffer was full
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
