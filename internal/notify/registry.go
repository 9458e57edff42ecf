// Package notify fans ledger change events out to live group sessions and
// to the message bus. Delivery is best-effort: a slow or gone subscriber
// loses events, and clients re-fetch state on every notification anyway.
package notify

import (
	"sync"

	"splitledger/internal/core"
)

// sessionBuffer bounds each subscriber channel. A session that falls this
// far behind starts dropping events rather than blocking publishers.
const sessionBuffer = 16

// Registry tracks live subscriptions per group. There is no process-wide
// singleton; the registry is passed explicitly to whoever broadcasts.
type Registry struct {
	mu     sync.RWMutex
	nextID uint64
	groups map[string]map[uint64]chan core.Event
}

// Subscription is one live session's event feed. Close it when the session
// ends; events arriving afterwards are dropped.
type Subscription struct {
	C <-chan core.Event

	id       uint64
	groupID  string
	registry *Registry
}

func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]map[uint64]chan core.Event)}
}

// Subscribe registers a session for one group's events.
func (r *Registry) Subscribe(groupID string) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	ch := make(chan core.Event, sessionBuffer)
	if r.groups[groupID] == nil {
		r.groups[groupID] = make(map[uint64]chan core.Event)
	}
	r.groups[groupID][r.nextID] = ch

	return &Subscription{C: ch, id: r.nextID, groupID: groupID, registry: r}
}

func (s *Subscription) Close() {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	sessions := s.registry.groups[s.groupID]
	if ch, ok := sessions[s.id]; ok {
		delete(sessions, s.id)
		close(ch)
		if len(sessions) == 0 {
			delete(s.registry.groups, s.groupID)
		}
	}
}

// Broadcast delivers an event to every session subscribed to its group.
// Sends never block: a full session buffer drops the event.
func (r *Registry) Broadcast(ev core.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ch := range r.groups[ev.GroupID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Sessions reports the number of live sessions for a group.
func (r *Registry) Sessions(groupID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[groupID])
}
