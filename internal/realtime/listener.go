package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/am4rknvl/chatcore/internal/session"
)

// Listener is C9: one Pub/Sub subscriber per instance, routing every
// chat-channel arrival to the Delivery Engine.
type Listener struct {
	bus      *session.Bus
	delivery *DeliveryEngine
}

func NewListener(bus *session.Bus, delivery *DeliveryEngine) *Listener {
	return &Listener{bus: bus, delivery: delivery}
}

// Run blocks until ctx is cancelled, dispatching bus arrivals to the
// Delivery Engine. Intended to run in its own goroutine for the lifetime
// of the process.
func (l *Listener) Run(ctx context.Context) {
	l.bus.SubscribePattern(ctx, func(cid uuid.UUID, payload json.RawMessage) {
		l.delivery.Handle(ctx, cid, payload)
	})
}
