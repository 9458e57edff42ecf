package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"splitledger/internal/core"
)

func TestRegistryDeliversToSubscribedGroupOnly(t *testing.T) {
	r := NewRegistry()
	subA := r.Subscribe("g1")
	defer subA.Close()
	subB := r.Subscribe("g2")
	defer subB.Close()

	r.Broadcast(core.NewEvent("g1", core.ChangeExpenseAdded))

	select {
	case ev := <-subA.C:
		require.Equal(t, "g1", ev.GroupID)
		require.Equal(t, core.ChangeExpenseAdded, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("subscriber for g1 got nothing")
	}

	select {
	case ev := <-subB.C:
		t.Fatalf("subscriber for g2 received foreign event %+v", ev)
	default:
	}
}

func TestRegistryCloseStopsDelivery(t *testing.T) {
	r := NewRegistry()
	sub := r.Subscribe("g1")
	require.Equal(t, 1, r.Sessions("g1"))

	sub.Close()
	require.Zero(t, r.Sessions("g1"))

	// Closing twice is harmless; broadcasting after close delivers nowhere.
	sub.Close()
	r.Broadcast(core.NewEvent("g1", core.ChangeChatMessage))

	_, open := <-sub.C
	require.False(t, open, "channel should be closed")
}

func TestRegistryDropsWhenSessionFallsBehind(t *testing.T) {
	r := NewRegistry()
	sub := r.Subscribe("g1")
	defer sub.Close()

	// Nobody reads; the buffer fills and further broadcasts must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sessionBuffer*3; i++ {
			r.Broadcast(core.NewEvent("g1", core.ChangeExpenseAdded))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow session")
	}
	require.Len(t, sub.C, sessionBuffer)
}

func TestRegistryConcurrentSubscribeBroadcast(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := r.Subscribe("g1")
			r.Broadcast(core.NewEvent("g1", core.ChangeIncomeAdded))
			sub.Close()
		}()
	}
	wg.Wait()
	require.Zero(t, r.Sessions("g1"))
}

type stubBus struct {
	mu     sync.Mutex
	events []core.Event
	err    error
}

func (s *stubBus) PublishEvent(_ context.Context, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *stubBus) published() []core.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Event(nil), s.events...)
}

func TestNotifierDeliversLocallyAndToBus(t *testing.T) {
	r := NewRegistry()
	sub := r.Subscribe("g1")
	defer sub.Close()
	bus := &stubBus{}

	n := NewNotifier(bus, r)
	n.Notify(context.Background(), "g1", core.ChangeSettlementRecorded)

	select {
	case ev := <-sub.C:
		require.Equal(t, core.ChangeSettlementRecorded, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("local session not notified")
	}

	require.Eventually(t, func() bool {
		return len(bus.published()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotifierToleratesNilBusAndBusErrors(t *testing.T) {
	r := NewRegistry()
	sub := r.Subscribe("g1")
	defer sub.Close()

	// Nil bus: local delivery still works.
	NewNotifier(nil, r).Notify(context.Background(), "g1", core.ChangeExpenseDeleted)
	select {
	case ev := <-sub.C:
		require.Equal(t, core.ChangeExpenseDeleted, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("local session not notified with nil bus")
	}

	// Failing bus: Notify never surfaces the error.
	bus := &stubBus{err: errors.New("broker down")}
	NewNotifier(bus, r).Notify(context.Background(), "g1", core.ChangeExpenseAdded)
	select {
	case <-sub.C:
	case <-time.After(time.Second):
		t.Fatal("local session not notified when bus fails")
	}
}
