package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"splitledger/internal/core"
)

type memStore struct {
	events []core.Event
	err    error
}

func (s *memStore) AppendActivity(_ context.Context, ev core.Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func TestHandleEventAppendsActivity(t *testing.T) {
	store := &memStore{}
	w := NewActivityWorker(store)

	ev := core.Event{GroupID: "g1", Kind: core.ChangeExpenseAdded, OccurredAt: time.Now().UTC()}
	require.NoError(t, w.HandleEvent(context.Background(), ev))
	require.Equal(t, []core.Event{ev}, store.events)
}

func TestHandleEventRejectsMalformed(t *testing.T) {
	store := &memStore{}
	w := NewActivityWorker(store)
	ctx := context.Background()

	require.Error(t, w.HandleEvent(ctx, core.Event{Kind: core.ChangeExpenseAdded}))
	require.Error(t, w.HandleEvent(ctx, core.Event{GroupID: "g1", Kind: "reboot"}))
	require.Empty(t, store.events)
}

func TestHandleEventPropagatesStoreFailure(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	w := NewActivityWorker(store)

	ev := core.NewEvent("g1", core.ChangeChatMessage)
	err := w.HandleEvent(context.Background(), ev)
	require.ErrorContains(t, err, "disk full")
}
