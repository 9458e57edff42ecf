package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// applyPlan replays a plan against a copy of the balances.
func applyPlan(balances map[string]int64, plan []Transfer) map[string]int64 {
	out := make(map[string]int64, len(balances))
	for id, b := range balances {
		out[id] = b
	}
	for _, t := range plan {
		out[t.FromMemberID] += t.Cents
		out[t.ToMemberID] -= t.Cents
	}
	return out
}

func TestSolve_AllZero(t *testing.T) {
	require.Empty(t, Solve(map[string]int64{"a": 0, "b": 0}))
	require.Empty(t, Solve(nil))
}

func TestSolve_SinglePair(t *testing.T) {
	plan := Solve(map[string]int64{"a": 5000, "b": -5000})
	require.Equal(t, []Transfer{{FromMemberID: "b", ToMemberID: "a", Cents: 5000}}, plan)
}

func TestSolve_SpecScenario(t *testing.T) {
	// A +200, B -100, C -100 -> B pays A 100, C pays A 100.
	plan := Solve(map[string]int64{"a": 20000, "b": -10000, "c": -10000})
	require.Equal(t, []Transfer{
		{FromMemberID: "b", ToMemberID: "a", Cents: 10000},
		{FromMemberID: "c", ToMemberID: "a", Cents: 10000},
	}, plan)

	// After B settles 100: A +100, B 0, C -100 -> single transfer C->A.
	plan = Solve(map[string]int64{"a": 10000, "b": 0, "c": -10000})
	require.Equal(t, []Transfer{{FromMemberID: "c", ToMemberID: "a", Cents: 10000}}, plan)
}

func TestSolve_TransfersZeroAllBalances(t *testing.T) {
	cases := []map[string]int64{
		{"a": 20000, "b": -10000, "c": -10000},
		{"a": 6666, "b": -3333, "c": -3333},
		{"a": 1, "b": -1},
		{"a": 500, "b": 250, "c": -300, "d": -450},
		{"a": 99999, "b": -1, "c": -99998},
	}
	for _, balances := range cases {
		plan := Solve(balances)
		after := applyPlan(balances, plan)
		for id, b := range after {
			require.Zero(t, b, "member %s not settled by plan %v", id, plan)
		}
	}
}

func TestSolve_AtMostKMinusOneTransfers(t *testing.T) {
	cases := []map[string]int64{
		{"a": 20000, "b": -10000, "c": -10000},
		{"a": 500, "b": 250, "c": -300, "d": -450},
		{"a": 10, "b": 20, "c": 30, "d": -15, "e": -45},
		{"a": 1, "b": -1, "c": 0, "d": 0},
	}
	for _, balances := range cases {
		nonzero := 0
		for _, b := range balances {
			if b != 0 {
				nonzero++
			}
		}
		plan := Solve(balances)
		require.LessOrEqual(t, len(plan), nonzero-1, "plan %v for %v", plan, balances)
	}
}

func TestSolve_Deterministic(t *testing.T) {
	balances := map[string]int64{"a": 500, "b": 500, "c": -500, "d": -500}
	first := Solve(balances)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Solve(balances))
	}
	// Ties on magnitude break toward the lower member id.
	require.Equal(t, []Transfer{
		{FromMemberID: "c", ToMemberID: "a", Cents: 500},
		{FromMemberID: "d", ToMemberID: "b", Cents: 500},
	}, first)
}

func TestPairwiseOwed(t *testing.T) {
	plan := []Transfer{
		{FromMemberID: "b", ToMemberID: "a", Cents: 10000},
		{FromMemberID: "c", ToMemberID: "a", Cents: 4000},
	}
	require.Equal(t, int64(10000), PairwiseOwed(plan, "b", "a"))
	require.Equal(t, int64(4000), PairwiseOwed(plan, "c", "a"))
	require.Zero(t, PairwiseOwed(plan, "a", "b"))
	require.Zero(t, PairwiseOwed(plan, "b", "c"))
}
