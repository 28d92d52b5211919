package events

import (
	"context"

	"go.uber.org/multierr"

	"github.com/alchemorsel/pantry/internal/domain/shared"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
)

// FanOut publishes every event to all publishers, even when some fail
type FanOut []outbound.EventPublisher

var _ outbound.EventPublisher = FanOut(nil)

// Publish returns the combined errors of the publishers that failed
func (f FanOut) Publish(ctx context.Context, event shared.DomainEvent) error {
	var err error
	for _, p := range f {
		err = multierr.Append(err, p.Publish(ctx, event))
	}
	return err
}
