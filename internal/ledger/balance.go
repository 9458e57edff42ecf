// Package ledger derives net balances from a group's splittable-expense
// ledger and converts them into a minimal transfer plan. Everything here is
// a pure function over a ledger snapshot; nothing mutates state.
package ledger

import (
	"splitledger/internal/core"
)

// ComputeBalances returns each member's net position in cents.
//
// A splittable expense credits its full amount to the payer and debits an
// equal share to every member whose join predates the expense (late joiners
// do not retroactively share old expenses). The share is floored to whole
// cents and the payer absorbs the remainder, so the sum of all balances is
// exactly zero after every expense.
//
// A settlement credits the payer and debits the receiver by the settled
// amount, directly cancelling prior debt.
//
// Deleted expenses never reach this function; the store filters them out of
// the snapshot.
func ComputeBalances(snap core.LedgerSnapshot) map[string]int64 {
	balances := make(map[string]int64, len(snap.Members))
	for _, m := range snap.Members {
		balances[m.ID] = 0
	}

	for _, e := range snap.Expenses {
		if !e.Splittable {
			continue
		}
		participants := participantsOf(snap.Members, e)
		if len(participants) == 0 {
			continue
		}
		share := e.Amount.Cents / int64(len(participants))
		remainder := e.Amount.Cents - share*int64(len(participants))

		balances[e.PayerID] += e.Amount.Cents
		for _, id := range participants {
			balances[id] -= share
		}
		// Payer absorbs the rounding remainder to keep the sum at zero.
		balances[e.PayerID] -= remainder
	}

	// Only roster members carry a balance. A settlement side that resolves
	// to no known member is skipped, which surfaces as a conservation
	// failure instead of a phantom balance entry.
	for _, s := range snap.Settlements {
		if _, ok := balances[s.FromMemberID]; ok {
			balances[s.FromMemberID] += s.Amount.Cents
		}
		if _, ok := balances[s.ToMemberID]; ok {
			balances[s.ToMemberID] -= s.Amount.Cents
		}
	}

	return balances
}

// participantsOf returns the ids of members who share in the expense: those
// already in the group when it was created. The payer always participates.
func participantsOf(members []core.Member, e core.Expense) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.ID == e.PayerID || !m.JoinedAt.After(e.CreatedAt) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// CheckConservation verifies the zero-sum invariant. A non-nil error is an
// internal consistency failure, not a caller mistake.
func CheckConservation(groupID string, balances map[string]int64) error {
	var sum int64
	for _, b := range balances {
		sum += b
	}
	if sum != 0 {
		return &core.ConservationError{GroupID: groupID, SumCents: sum}
	}
	return nil
}
