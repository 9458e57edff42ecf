package http

import (
	"net/http"
	"time"

	"splitledger/internal/core"
	"splitledger/internal/services"
	"splitledger/internal/settlement"
)

type balanceJSON struct {
	MemberID   string `json:"memberId"`
	MemberName string `json:"memberName"`
	Cents      int64  `json:"amountCents"`
	Amount     string `json:"amount"`
}

type transferJSON struct {
	FromMemberID string `json:"fromMemberId"`
	FromName     string `json:"fromName"`
	ToMemberID   string `json:"toMemberId"`
	ToName       string `json:"toName"`
	Cents        int64  `json:"amountCents"`
	Amount       string `json:"amount"`
}

type settlementJSON struct {
	ID           string    `json:"id"`
	GroupID      string    `json:"groupId"`
	FromMemberID string    `json:"fromMemberId"`
	ToMemberID   string    `json:"toMemberId"`
	Cents        int64     `json:"amountCents"`
	Amount       string    `json:"amount"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toBalancesJSON(balances []services.BalanceEntry) []balanceJSON {
	out := make([]balanceJSON, 0, len(balances))
	for _, b := range balances {
		out = append(out, balanceJSON{
			MemberID:   b.MemberID,
			MemberName: b.MemberName,
			Cents:      b.Cents,
			Amount:     core.FormatCents(b.Cents),
		})
	}
	return out
}

func toTransfersJSON(plan []services.PlanEntry) []transferJSON {
	out := make([]transferJSON, 0, len(plan))
	for _, t := range plan {
		out = append(out, transferJSON{
			FromMemberID: t.FromMemberID,
			FromName:     t.FromName,
			ToMemberID:   t.ToMemberID,
			ToName:       t.ToName,
			Cents:        t.AmountCents,
			Amount:       core.FormatCents(t.AmountCents),
		})
	}
	return out
}

func toSettlementJSON(st core.Settlement) settlementJSON {
	return settlementJSON{
		ID:           st.ID,
		GroupID:      st.GroupID,
		FromMemberID: st.FromMemberID,
		ToMemberID:   st.ToMemberID,
		Cents:        st.Amount.Cents,
		Amount:       st.Amount.String(),
		CreatedAt:    st.CreatedAt,
	}
}

// handleCreateSettlement records a transfer from the calling member. The
// idempotency key makes network retries safe: the same key returns the
// originally stored settlement.
func (s *Server) handleCreateSettlement(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	caller, err := s.requireMember(r, groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		ToMemberID     string `json:"toMemberId"`
		Amount         string `json:"amount"`
		IdempotencyKey string `json:"idempotencyKey"`
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

	st, err := s.recorder.Record(r.Context(), settlement.Request{
		GroupID:        groupID,
		FromMemberID:   caller.ID,
		ToMemberID:     req.ToMemberID,
		AmountCents:    cents,
		IdempotencyKey: sanitizeInput(req.IdempotencyKey),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSettlementJSON(st))
}

func (s *Server) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	if _, err := s.groups.Group(r.Context(), groupID); err != nil {
		writeError(w, r, err)
		return
	}
	settlements, err := s.store.ListSettlements(r.Context(), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]settlementJSON, 0, len(settlements))
	for _, st := range settlements {
		out = append(out, toSettlementJSON(st))
	}
	writeJSON(w, http.StatusOK, struct {
		Settlements []settlementJSON `json:"settlements"`
	}{out})
}
