package ledger

import (
	"cmp"
	"slices"
)

// Transfer is one suggested payment in a debt plan.
type Transfer struct {
	FromMemberID string
	ToMemberID   string
	Cents        int64
}

// Solve converts net balances into an ordered minimal transfer plan using
// greedy cash-flow minimization: creditors and debtors are ordered by
// magnitude, largest first, and matched pairwise with the smaller of the
// two amounts until both sides are exhausted. Every match fully settles at
// least one side, so k members with nonzero balance produce at most k-1
// transfers.
//
// The result is deterministic: ties on magnitude break toward the lower
// member id. Balances are integer cents, so "settled" means exactly zero;
// there is no rounding dust to tolerate.
//
// Solve assumes the balances sum to zero. Callers verify conservation first;
// on an unbalanced input the leftover side is simply left unmatched.
func Solve(balances map[string]int64) []Transfer {
	type stake struct {
		id    string
		cents int64 // positive for both sides
	}

	var creditors, debtors []stake
	for id, b := range balances {
		switch {
		case b > 0:
			creditors = append(creditors, stake{id, b})
		case b < 0:
			debtors = append(debtors, stake{id, -b})
		}
	}
	if len(creditors) == 0 || len(debtors) == 0 {
		return nil
	}

	// Largest amount first, lower id wins ties.
	byAmountDesc := func(a, b stake) int {
		if c := cmp.Compare(b.cents, a.cents); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	}
	slices.SortFunc(creditors, byAmountDesc)
	slices.SortFunc(debtors, byAmountDesc)

	var plan []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].cents, creditors[j].cents)
		plan = append(plan, Transfer{
			FromMemberID: debtors[i].id,
			ToMemberID:   creditors[j].id,
			Cents:        amount,
		})
		debtors[i].cents -= amount
		creditors[j].cents -= amount
		if debtors[i].cents == 0 {
			i++
		}
		if creditors[j].cents == 0 {
			j++
		}
	}
	return plan
}

// PairwiseOwed returns the amount the plan attributes from one member to
// another, i.e. the maximum the debtor may currently settle with that
// specific counterpart.
func PairwiseOwed(plan []Transfer, fromID, toID string) int64 {
	var owed int64
	for _, t := range plan {
		if t.FromMemberID == fromID && t.ToMemberID == toID {
			owed += t.Cents
		}
	}
	return owed
}
