package core

import "time"

// ChangeKind names what changed in a group's ledger. Subscribers re-fetch
// authoritative state; the event itself carries no payload beyond identity
// and time, so stale-payload bugs cannot exist.
type ChangeKind string

const (
	ChangeExpenseAdded       ChangeKind = "expense_added"
	ChangeExpenseDeleted     ChangeKind = "expense_deleted"
	ChangeIncomeAdded        ChangeKind = "income_added"
	ChangeSettlementRecorded ChangeKind = "settlement_recorded"
	ChangeChatMessage        ChangeKind = "chat_message"
)

// Valid reports whether k is a known change kind.
func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeExpenseAdded, ChangeExpenseDeleted, ChangeIncomeAdded,
		ChangeSettlementRecorded, ChangeChatMessage:
		return true
	}
	return false
}

// Event is the thin broadcast sent after a ledger mutation commits.
type Event struct {
	GroupID    string     `json:"groupId"`
	Kind       ChangeKind `json:"changeKind"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// NewEvent stamps an event with the current time.
func NewEvent(groupID string, kind ChangeKind) Event {
	return Event{GroupID: groupID, Kind: kind, OccurredAt: time.Now().UTC()}
}
