package amqp

import (
	"encoding/json"
	"fmt"

	"splitledger/internal/core"
)

// Events travel as their JSON form directly; the envelope is deliberately
// thin (group, kind, timestamp) so a stale payload cannot mislead a
// subscriber into skipping a re-fetch.

func marshalEvent(ev core.Event) ([]byte, error) {
	return json.Marshal(ev)
}

func unmarshalEvent(data []byte) (core.Event, error) {
	var ev core.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return core.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.GroupID == "" || !ev.Kind.Valid() {
		return core.Event{}, fmt.Errorf("malformed event: group=%q kind=%q", ev.GroupID, ev.Kind)
	}
	return ev, nil
}

// routingKey builds the per-group topic key, e.g. "group.G1.expense_added".
// Consumers bind "group.#" for everything or "group.<id>.#" for one group.
func routingKey(ev core.Event) string {
	return "group." + ev.GroupID + "." + string(ev.Kind)
}
