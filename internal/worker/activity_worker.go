// Package worker consumes group change events from the bus and materializes
// the per-group activity feed.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"splitledger/internal/core"
)

// ActivityStore is the slice of the ledger store the worker writes to.
type ActivityStore interface {
	AppendActivity(ctx context.Context, ev core.Event) error
}

// ActivityWorker turns the event stream into durable activity rows. Events
// are thin, so the row is just who changed what and when; the feed endpoint
// serves it without touching ledger state.
type ActivityWorker struct {
	store ActivityStore
}

func NewActivityWorker(store ActivityStore) *ActivityWorker {
	return &ActivityWorker{store: store}
}

// HandleEvent processes one event from the bus. A returned error requeues
// the delivery, so the append must stay idempotent-friendly: duplicate feed
// rows are acceptable, lost ones are not.
func (w *ActivityWorker) HandleEvent(ctx context.Context, ev core.Event) error {
	if ev.GroupID == "" || !ev.Kind.Valid() {
		return fmt.Errorf("malformed event: group=%q kind=%q", ev.GroupID, ev.Kind)
	}

	if err := w.store.AppendActivity(ctx, ev); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}

	slog.InfoContext(ctx, "Activity recorded",
		"group_id", ev.GroupID,
		"change_kind", ev.Kind)
	return nil
}
