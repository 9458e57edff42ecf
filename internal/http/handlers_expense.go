package http

import (
	"net/http"
	"time"

	"splitledger/internal/core"
	"splitledger/internal/services"
)

type expenseJSON struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"groupId"`
	PayerID     string    `json:"payerId"`
	Description string    `json:"description"`
	Cents       int64     `json:"amountCents"`
	Amount      string    `json:"amount"`
	Splittable  bool      `json:"splittable"`
	CreatedAt   time.Time `json:"createdAt"`
}

type incomeJSON struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"groupId"`
	MemberID    string    `json:"memberId"`
	Description string    `json:"description"`
	Cents       int64     `json:"amountCents"`
	Amount      string    `json:"amount"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:          e.ID,
		GroupID:     e.GroupID,
		PayerID:     e.PayerID,
		Description: e.Description,
		Cents:       e.Amount.Cents,
		Amount:      e.Amount.String(),
		Splittable:  e.Splittable,
		CreatedAt:   e.CreatedAt,
	}
}

func toIncomeJSON(in core.Income) incomeJSON {
	return incomeJSON{
		ID:          in.ID,
		GroupID:     in.GroupID,
		MemberID:    in.MemberID,
		Description: in.Description,
		Cents:       in.Amount.Cents,
		Amount:      in.Amount.String(),
		CreatedAt:   in.CreatedAt,
	}
}

// handleAddExpense appends an expense paid by the calling member.
func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	caller, err := s.requireMember(r, groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Description string `json:"description"`
		Amount      string `json:"amount"`
		Splittable  bool   `json:"splittable"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.expenses.AddExpense(r.Context(), services.ExpenseRequest{
		GroupID:     groupID,
		PayerID:     caller.ID,
		Description: sanitizeInput(req.Description),
		AmountCents: cents,
		Splittable:  req.Splittable,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toExpenseJSON(e))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.Expenses(r.Context(), r.PathValue("groupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, http.StatusOK, struct {
		Expenses []expenseJSON `json:"expenses"`
	}{out})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	caller, err := s.requireMember(r, groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.expenses.DeleteExpense(r.Context(), groupID, r.PathValue("expenseID"), caller.ID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	caller, err := s.requireMember(r, groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Description string `json:"description"`
		Amount      string `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in, err := s.expenses.AddIncome(r.Context(), services.IncomeRequest{
		GroupID:     groupID,
		MemberID:    caller.ID,
		Description: sanitizeInput(req.Description),
		AmountCents: cents,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toIncomeJSON(in))
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	incomes, err := s.expenses.Incomes(r.Context(), r.PathValue("groupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]incomeJSON, 0, len(incomes))
	for _, in := range incomes {
		out = append(out, toIncomeJSON(in))
	}
	writeJSON(w, http.StatusOK, struct {
		Incomes []incomeJSON `json:"incomes"`
	}{out})
}
