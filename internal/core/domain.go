package core

import (
	"strings"
	"time"
)

type (
	// Group is a shared ledger scope. Members belong to exactly one group.
	Group struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}

	// Member is a participant in a group. JoinedAt gates which historical
	// expenses the member shares in: an expense created before the join is
	// never split against this member.
	Member struct {
		ID       string
		GroupID  string
		Name     string
		Email    string
		JoinedAt time.Time
	}

	// Expense is an append-only ledger entry. Splittable expenses enter
	// balance aggregation; personal ones are only listed. An expense is
	// immutable once created, except for soft deletion which removes it
	// from aggregation.
	Expense struct {
		ID          string
		GroupID     string
		PayerID     string
		Description string
		Amount      Money
		Splittable  bool
		CreatedAt   time.Time
	}

	// Income is a logged earning. Incomes never enter balance aggregation.
	Income struct {
		ID          string
		GroupID     string
		MemberID    string
		Description string
		Amount      Money
		CreatedAt   time.Time
	}

	// Settlement is a recorded real-money transfer between two members.
	// Settlements are closed facts: never mutated, never deleted.
	Settlement struct {
		ID             string
		GroupID        string
		FromMemberID   string
		ToMemberID     string
		Amount         Money
		IdempotencyKey string
		CreatedAt      time.Time
	}

	// ChatMessage is a stored group chat line. Delivery to live sessions is
	// a thin ChangeChatMessage event; clients re-fetch history.
	ChatMessage struct {
		ID         string
		GroupID    string
		SenderID   string
		SenderName string
		Content    string
		SentAt     time.Time
	}

	// LedgerSnapshot is a consistent read of everything balance computation
	// needs for one group.
	LedgerSnapshot struct {
		Group       Group
		Members     []Member
		Expenses    []Expense
		Settlements []Settlement
	}
)

const maxDescriptionLen = 200

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if !strings.Contains(m.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if e.PayerID == "" {
		return ErrNotGroupMember
	}
	return e.Amount.Validate()
}

func (i Income) Validate() error {
	if len(strings.TrimSpace(i.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(i.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if i.MemberID == "" {
		return ErrNotGroupMember
	}
	return i.Amount.Validate()
}

func (s Settlement) Validate() error {
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if s.FromMemberID == s.ToMemberID {
		return ErrSelfSettlement
	}
	if strings.TrimSpace(s.IdempotencyKey) == "" {
		return ErrMissingIdempotencyKey
	}
	return nil
}

func (c ChatMessage) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return ErrEmptyMessage
	}
	return nil
}

// MemberByID returns the member with the given id, if present.
func (s LedgerSnapshot) MemberByID(id string) (Member, bool) {
	for _, m := range s.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}
