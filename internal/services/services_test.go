package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"splitledger/internal/core"
	"splitledger/internal/storage"
)

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []core.ChangeKind
}

func (n *fakeNotifier) Notify(_ context.Context, _ string, kind core.ChangeKind) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

func (n *fakeNotifier) last() core.ChangeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.kinds) == 0 {
		return ""
	}
	return n.kinds[len(n.kinds)-1]
}

func newTestStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateGroupEnrollsFounder(t *testing.T) {
	store := newTestStore(t)
	svc := NewGroupService(store)
	ctx := context.Background()

	g, founder, err := svc.CreateGroup(ctx, "ski trip", "Ada", "ada@example.com")
	require.NoError(t, err)
	require.Len(t, g.ID, groupCodeLen)
	for _, c := range g.ID {
		require.Contains(t, groupCodeAlphabet, string(c))
	}
	require.Equal(t, g.ID, founder.GroupID)

	members, err := svc.Members(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "Ada", members[0].Name)
}

func TestCreateGroupRejectsBlankName(t *testing.T) {
	svc := NewGroupService(newTestStore(t))
	_, _, err := svc.CreateGroup(context.Background(), "   ", "Ada", "ada@example.com")
	require.ErrorIs(t, err, core.ErrEmptyName)
}

func TestJoinGroup(t *testing.T) {
	store := newTestStore(t)
	svc := NewGroupService(store)
	ctx := context.Background()

	g, _, err := svc.CreateGroup(ctx, "flat", "Ada", "ada@example.com")
	require.NoError(t, err)

	m, err := svc.JoinGroup(ctx, g.ID, "Ben", "ben@example.com")
	require.NoError(t, err)
	require.Equal(t, g.ID, m.GroupID)

	// Same email again is a conflict; unknown code is not found.
	_, err = svc.JoinGroup(ctx, g.ID, "Ben again", "ben@example.com")
	require.ErrorIs(t, err, core.ErrAlreadyMember)
	_, err = svc.JoinGroup(ctx, "NOPE1234", "Cam", "cam@example.com")
	require.ErrorIs(t, err, core.ErrGroupNotFound)
}

// seedTrio creates a group of three with one 300.00 expense paid by the
// founder, split three ways.
func seedTrio(t *testing.T, store *storage.SQLiteRepository, notifier Notifier) (groupID string, ids [3]string) {
	t.Helper()
	ctx := context.Background()
	groups := NewGroupService(store)
	expenses := NewExpenseService(store, notifier)

	g, founder, err := groups.CreateGroup(ctx, "trip", "Ada", "ada@example.com")
	require.NoError(t, err)
	ben, err := groups.JoinGroup(ctx, g.ID, "Ben", "ben@example.com")
	require.NoError(t, err)
	cam, err := groups.JoinGroup(ctx, g.ID, "Cam", "cam@example.com")
	require.NoError(t, err)

	_, err = expenses.AddExpense(ctx, ExpenseRequest{
		GroupID: g.ID, PayerID: founder.ID,
		Description: "hotel", AmountCents: 30000, Splittable: true,
	})
	require.NoError(t, err)

	return g.ID, [3]string{founder.ID, ben.ID, cam.ID}
}

func TestBalancesAndDebtPlan(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	groupID, ids := seedTrio(t, store, notifier)
	svc := NewGroupService(store)
	ctx := context.Background()

	balances, err := svc.Balances(ctx, groupID)
	require.NoError(t, err)
	byID := make(map[string]int64, len(balances))
	for _, b := range balances {
		byID[b.MemberID] = b.Cents
	}
	require.Equal(t, int64(20000), byID[ids[0]])
	require.Equal(t, int64(-10000), byID[ids[1]])
	require.Equal(t, int64(-10000), byID[ids[2]])

	plan, err := svc.DebtPlan(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	for _, entry := range plan {
		require.Equal(t, ids[0], entry.ToMemberID)
		require.Equal(t, "Ada", entry.ToName)
		require.Equal(t, int64(10000), entry.AmountCents)
	}
}

func TestDebtPlanEmptyWhenSettled(t *testing.T) {
	store := newTestStore(t)
	svc := NewGroupService(store)
	ctx := context.Background()

	g, _, err := svc.CreateGroup(ctx, "quiet", "Ada", "ada@example.com")
	require.NoError(t, err)

	plan, err := svc.DebtPlan(ctx, g.ID)
	require.NoError(t, err)
	require.Empty(t, plan)

	_, err = svc.DebtPlan(ctx, "NOPE1234")
	require.ErrorIs(t, err, core.ErrGroupNotFound)
}

func TestDebtPlanConcurrentRequests(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	groupID, _ := seedTrio(t, store, notifier)
	svc := NewGroupService(store)

	var wg sync.WaitGroup
	results := make([][]PlanEntry, 8)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.DebtPlan(context.Background(), groupID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, plan := range results[1:] {
		require.Equal(t, results[0], plan)
	}
}

func TestAddExpenseNotifiesAfterSave(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	groups := NewGroupService(store)
	svc := NewExpenseService(store, notifier)
	ctx := context.Background()

	g, founder, err := groups.CreateGroup(ctx, "flat", "Ada", "ada@example.com")
	require.NoError(t, err)

	e, err := svc.AddExpense(ctx, ExpenseRequest{
		GroupID: g.ID, PayerID: founder.ID,
		Description: "groceries", AmountCents: 4250, Splittable: true,
	})
	require.NoError(t, err)
	require.Equal(t, core.ChangeExpenseAdded, notifier.last())

	listed, err := svc.Expenses(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, e.ID, listed[0].ID)
}

func TestAddExpenseRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	groups := NewGroupService(store)
	svc := NewExpenseService(store, notifier)
	ctx := context.Background()

	g, founder, err := groups.CreateGroup(ctx, "flat", "Ada", "ada@example.com")
	require.NoError(t, err)

	_, err = svc.AddExpense(ctx, ExpenseRequest{
		GroupID: g.ID, PayerID: founder.ID,
		Description: "", AmountCents: 100, Splittable: true,
	})
	require.ErrorIs(t, err, core.ErrEmptyDescription)

	_, err = svc.AddExpense(ctx, ExpenseRequest{
		GroupID: g.ID, PayerID: founder.ID,
		Description: "free lunch", AmountCents: 0, Splittable: true,
	})
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.AddExpense(ctx, ExpenseRequest{
		GroupID: g.ID, PayerID: "stranger",
		Description: "sneaky", AmountCents: 100, Splittable: true,
	})
	require.ErrorIs(t, err, core.ErrMemberNotFound)

	require.Empty(t, notifier.kinds, "failed writes must not notify")
}

func TestDeleteExpenseOwnerOnly(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	groupID, ids := seedTrio(t, store, notifier)
	svc := NewExpenseService(store, notifier)
	ctx := context.Background()

	listed, err := svc.Expenses(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	expenseID := listed[0].ID

	err = svc.DeleteExpense(ctx, groupID, expenseID, ids[1])
	require.ErrorIs(t, err, core.ErrNotExpenseOwner)

	require.NoError(t, svc.DeleteExpense(ctx, groupID, expenseID, ids[0]))
	require.Equal(t, core.ChangeExpenseDeleted, notifier.last())

	listed, err = svc.Expenses(ctx, groupID)
	require.NoError(t, err)
	require.Empty(t, listed)

	err = svc.DeleteExpense(ctx, groupID, expenseID, ids[0])
	require.ErrorIs(t, err, core.ErrExpenseNotFound)
}

func TestIncomesStayOutOfBalances(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	groupID, ids := seedTrio(t, store, notifier)
	svc := NewExpenseService(store, notifier)
	groups := NewGroupService(store)
	ctx := context.Background()

	_, err := svc.AddIncome(ctx, IncomeRequest{
		GroupID: groupID, MemberID: ids[1],
		Description: "salary", AmountCents: 250000,
	})
	require.NoError(t, err)
	require.Equal(t, core.ChangeIncomeAdded, notifier.last())

	incomes, err := svc.Incomes(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, incomes, 1)

	// The income changes nothing about who owes whom.
	balances, err := groups.Balances(ctx, groupID)
	require.NoError(t, err)
	for _, b := range balances {
		if b.MemberID == ids[1] {
			require.Equal(t, int64(-10000), b.Cents)
		}
	}
}

func TestChatPostAndHistory(t *testing.T) {
	store := newTestStore(t)
	notifier := &fakeNotifier{}
	groupID, ids := seedTrio(t, store, notifier)
	svc := NewChatService(store, notifier)
	ctx := context.Background()

	first, err := svc.Post(ctx, groupID, ids[0], "who booked the hotel?")
	require.NoError(t, err)
	require.Equal(t, "Ada", first.SenderName)
	require.Equal(t, core.ChangeChatMessage, notifier.last())

	time.Sleep(1100 * time.Millisecond) // second-granularity sent_at ordering
	_, err = svc.Post(ctx, groupID, ids[1], "me, already added it")
	require.NoError(t, err)

	history, err := svc.History(ctx, groupID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "who booked the hotel?", history[0].Content)

	_, err = svc.Post(ctx, groupID, "stranger", "hi")
	require.ErrorIs(t, err, core.ErrMemberNotFound)
	_, err = svc.Post(ctx, groupID, ids[0], "   ")
	require.ErrorIs(t, err, core.ErrEmptyMessage)
}
