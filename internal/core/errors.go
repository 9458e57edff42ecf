package core

import (
	"errors"
	"fmt"
)

var (
	// Validation errors: bad input, reported synchronously to the caller.
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrSelfSettlement        = errors.New("cannot settle with yourself")
	ErrMissingIdempotencyKey = errors.New("missing idempotency key")
	ErrEmptyDescription      = errors.New("empty description")
	ErrDescriptionTooLong    = errors.New("description too long (max 200 characters)")
	ErrEmptyName             = errors.New("empty name")
	ErrInvalidEmail          = errors.New("invalid email")
	ErrEmptyMessage          = errors.New("empty message")

	// Not-found errors.
	ErrGroupNotFound      = errors.New("group not found")
	ErrMemberNotFound     = errors.New("member not found")
	ErrExpenseNotFound    = errors.New("expense not found")
	ErrSettlementNotFound = errors.New("settlement not found")

	// Conflict errors.
	ErrNotGroupMember = errors.New("not a member of this group")
	ErrAlreadyMember  = errors.New("already a member of this group")
	ErrNotExpenseOwner = errors.New("only the payer can delete an expense")

	// ErrGroupQuarantined means a conservation violation was detected and
	// settlement writes for the group are refused until reconciled.
	ErrGroupQuarantined = errors.New("settlements suspended for this group pending reconciliation")
)

// ExceedsOwedError rejects a settlement larger than the current pairwise
// debt between the two named members. MaxPayableCents is the amount the
// current debt plan attributes from payer to receiver, so the caller can
// retry correctly.
type ExceedsOwedError struct {
	MaxPayableCents int64
}

func (e *ExceedsOwedError) Error() string {
	return fmt.Sprintf("amount exceeds owed: at most %s payable to this member", FormatCents(e.MaxPayableCents))
}

// ConservationError is the internal invariant violation: the sum of all
// member balances in a group is not zero. It must never surface to API
// callers in detail; handlers map it to a generic server error.
type ConservationError struct {
	GroupID  string
	SumCents int64
}

func (e *ConservationError) Error() string {
	return fmt.Sprintf("ledger conservation violated for group %s: balances sum to %s", e.GroupID, FormatCents(e.SumCents))
}
