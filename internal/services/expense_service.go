package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"splitledger/internal/core"
	"splitledger/internal/storage"
)

// ExpenseService handles the expense and income sides of the ledger. Writes
// go to SQLite first; the notifier runs only after the row is durable, so a
// broadcast never announces state that could still roll back.
type ExpenseService struct {
	store    *storage.SQLiteRepository
	notifier Notifier
}

func NewExpenseService(store *storage.SQLiteRepository, notifier Notifier) *ExpenseService {
	return &ExpenseService{store: store, notifier: notifier}
}

// ExpenseRequest is the caller's side of a new expense.
type ExpenseRequest struct {
	GroupID     string
	PayerID     string
	Description string
	AmountCents int64
	Splittable  bool
}

// AddExpense appends one expense to the group ledger.
func (s *ExpenseService) AddExpense(ctx context.Context, req ExpenseRequest) (core.Expense, error) {
	if _, err := s.store.GetMember(ctx, req.GroupID, req.PayerID); err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		ID:          uuid.NewString(),
		GroupID:     req.GroupID,
		PayerID:     req.PayerID,
		Description: req.Description,
		Amount:      core.Money{Cents: req.AmountCents},
		Splittable:  req.Splittable,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, err
	}

	s.notify(ctx, req.GroupID, core.ChangeExpenseAdded)
	return e, nil
}

// DeleteExpense soft deletes an expense. The store enforces that only the
// payer may remove their own entry.
func (s *ExpenseService) DeleteExpense(ctx context.Context, groupID, expenseID, actorID string) error {
	if err := s.store.SoftDeleteExpense(ctx, groupID, expenseID, actorID); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Expense deleted",
		"group_id", groupID,
		"expense_id", expenseID)
	s.notify(ctx, groupID, core.ChangeExpenseDeleted)
	return nil
}

func (s *ExpenseService) Expenses(ctx context.Context, groupID string) ([]core.Expense, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, groupID)
}

// IncomeRequest is the caller's side of a new income entry.
type IncomeRequest struct {
	GroupID     string
	MemberID    string
	Description string
	AmountCents int64
}

// AddIncome logs an earning. Incomes are informational and never enter
// balance aggregation.
func (s *ExpenseService) AddIncome(ctx context.Context, req IncomeRequest) (core.Income, error) {
	if _, err := s.store.GetMember(ctx, req.GroupID, req.MemberID); err != nil {
		return core.Income{}, err
	}

	in := core.Income{
		ID:          uuid.NewString(),
		GroupID:     req.GroupID,
		MemberID:    req.MemberID,
		Description: req.Description,
		Amount:      core.Money{Cents: req.AmountCents},
		CreatedAt:   time.Now().UTC(),
	}
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	if err := s.store.CreateIncome(ctx, in); err != nil {
		return core.Income{}, err
	}

	s.notify(ctx, req.GroupID, core.ChangeIncomeAdded)
	return in, nil
}

func (s *ExpenseService) Incomes(ctx context.Context, groupID string) ([]core.Income, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListIncomes(ctx, groupID)
}

func (s *ExpenseService) notify(ctx context.Context, groupID string, kind core.ChangeKind) {
	if s.notifier == nil {
		slog.WarnContext(ctx, "Notifier not configured, skipping event",
			"group_id", groupID, "change_kind", kind)
		return
	}
	s.notifier.Notify(ctx, groupID, kind)
}
