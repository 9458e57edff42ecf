package notify

import (
	"context"
	"log/slog"
	"time"

	"splitledger/internal/core"
)

const busPublishTimeout = 5 * time.Second

// EventPublisher is the bus side of the notifier, satisfied by the AMQP
// client. Nil is allowed: local sessions still get events without a bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev core.Event) error
}

// Notifier publishes change events after ledger mutations commit. Local
// sessions are notified synchronously (a non-blocking channel send); the
// bus publish happens in the background so it never delays the caller's
// response. Failures are logged, never returned: the mutation already
// succeeded.
type Notifier struct {
	bus      EventPublisher
	registry *Registry
}

func NewNotifier(bus EventPublisher, registry *Registry) *Notifier {
	return &Notifier{bus: bus, registry: registry}
}

// Notify broadcasts a change in the given group. Callers must invoke it
// only after the triggering mutation is durably committed.
func (n *Notifier) Notify(ctx context.Context, groupID string, kind core.ChangeKind) {
	ev := core.NewEvent(groupID, kind)

	if n.registry != nil {
		n.registry.Broadcast(ev)
	}

	if n.bus == nil {
		slog.DebugContext(ctx, "Event bus not configured, local delivery only",
			"group_id", groupID, "change_kind", kind)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), busPublishTimeout)
		defer cancel()
		if err := n.bus.PublishEvent(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to publish group event",
				"error", err,
				"group_id", groupID,
				"change_kind", kind)
		}
	}()
}
