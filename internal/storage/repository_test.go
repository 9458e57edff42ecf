package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"splitledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedGroup(t *testing.T, repo *SQLiteRepository) (core.Group, []core.Member) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	g := core.Group{ID: "G1", Name: "flat", CreatedAt: now}
	require.NoError(t, repo.CreateGroup(ctx, g))

	members := []core.Member{
		{ID: "a", GroupID: g.ID, Name: "Ada", Email: "ada@example.com", JoinedAt: now},
		{ID: "b", GroupID: g.ID, Name: "Ben", Email: "ben@example.com", JoinedAt: now},
	}
	for _, m := range members {
		require.NoError(t, repo.AddMember(ctx, m))
	}
	return g, members
}

func TestGroupAndMembers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	g, members := seedGroup(t, repo)

	got, err := repo.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, g.Name, got.Name)

	_, err = repo.GetGroup(ctx, "missing")
	require.ErrorIs(t, err, core.ErrGroupNotFound)

	list, err := repo.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, members[0].Email, list[0].Email)

	// Same email cannot join twice.
	err = repo.AddMember(ctx, core.Member{
		ID: "c", GroupID: g.ID, Name: "Ada again", Email: "ada@example.com", JoinedAt: time.Now(),
	})
	require.ErrorIs(t, err, core.ErrAlreadyMember)

	_, err = repo.GetMember(ctx, g.ID, "nope")
	require.ErrorIs(t, err, core.ErrMemberNotFound)
}

func TestExpenseLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	g, _ := seedGroup(t, repo)

	e := core.Expense{
		ID: "e1", GroupID: g.ID, PayerID: "a",
		Description: "groceries", Amount: core.Money{Cents: 3000},
		Splittable: true, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateExpense(ctx, e))

	list, err := repo.ListExpenses(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].Splittable)
	require.Equal(t, int64(3000), list[0].Amount.Cents)

	// Only the payer may delete.
	require.ErrorIs(t, repo.SoftDeleteExpense(ctx, g.ID, "e1", "b"), core.ErrNotExpenseOwner)
	require.NoError(t, repo.SoftDeleteExpense(ctx, g.ID, "e1", "a"))

	list, err = repo.ListExpenses(ctx, g.ID)
	require.NoError(t, err)
	require.Empty(t, list)

	// Deleted expenses leave the snapshot too.
	snap, err := repo.ReadLedger(ctx, g.ID)
	require.NoError(t, err)
	require.Empty(t, snap.Expenses)

	require.ErrorIs(t, repo.SoftDeleteExpense(ctx, g.ID, "e1", "a"), core.ErrExpenseNotFound)
}

func TestSettlementIdempotencyKey(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	g, _ := seedGroup(t, repo)

	s := core.Settlement{
		ID: "s1", GroupID: g.ID, FromMemberID: "b", ToMemberID: "a",
		Amount: core.Money{Cents: 1500}, IdempotencyKey: "k1",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateSettlement(ctx, s))

	dup := s
	dup.ID = "s2"
	require.ErrorIs(t, repo.CreateSettlement(ctx, dup), ErrDuplicateIdempotencyKey)

	got, err := repo.SettlementByKey(ctx, g.ID, "k1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.ID)
	require.Equal(t, int64(1500), got.Amount.Cents)

	_, err = repo.SettlementByKey(ctx, g.ID, "unknown")
	require.ErrorIs(t, err, core.ErrSettlementNotFound)

	all, err := repo.ListSettlements(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestReadLedgerSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	g, members := seedGroup(t, repo)

	require.NoError(t, repo.CreateExpense(ctx, core.Expense{
		ID: "e1", GroupID: g.ID, PayerID: "a",
		Description: "rent", Amount: core.Money{Cents: 90000},
		Splittable: true, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, repo.CreateSettlement(ctx, core.Settlement{
		ID: "s1", GroupID: g.ID, FromMemberID: "b", ToMemberID: "a",
		Amount: core.Money{Cents: 45000}, IdempotencyKey: "k1",
		CreatedAt: time.Now().UTC(),
	}))

	snap, err := repo.ReadLedger(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, g.ID, snap.Group.ID)
	require.Len(t, snap.Members, len(members))
	require.Len(t, snap.Expenses, 1)
	require.Len(t, snap.Settlements, 1)

	_, err = repo.ReadLedger(ctx, "missing")
	require.ErrorIs(t, err, core.ErrGroupNotFound)
}

func TestChatAndActivity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	g, _ := seedGroup(t, repo)

	for i, content := range []string{"hello", "who owes what?", "paid you back"} {
		require.NoError(t, repo.SaveChatMessage(ctx, core.ChatMessage{
			ID: string(rune('x' + i)), GroupID: g.ID, SenderID: "a", SenderName: "Ada",
			Content: content, SentAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}
	msgs, err := repo.ListChatMessages(ctx, g.ID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	// Oldest of the returned window first.
	require.Equal(t, "who owes what?", msgs[0].Content)
	require.Equal(t, "paid you back", msgs[1].Content)

	ev := core.NewEvent(g.ID, core.ChangeExpenseAdded)
	require.NoError(t, repo.AppendActivity(ctx, ev))
	feed, err := repo.ListActivity(ctx, g.ID, 10)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Equal(t, core.ChangeExpenseAdded, feed[0].Kind)
}
