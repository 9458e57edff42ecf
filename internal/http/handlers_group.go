package http

import (
	"net/http"
	"time"

	"splitledger/internal/core"
)

type groupJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type memberJSON struct {
	ID       string    `json:"id"`
	GroupID  string    `json:"groupId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joinedAt"`
}

func toGroupJSON(g core.Group) groupJSON {
	return groupJSON{ID: g.ID, Name: g.Name, CreatedAt: g.CreatedAt}
}

func toMemberJSON(m core.Member) memberJSON {
	return memberJSON{ID: m.ID, GroupID: m.GroupID, Name: m.Name, Email: m.Email, JoinedAt: m.JoinedAt}
}

func toMembersJSON(members []core.Member) []memberJSON {
	out := make([]memberJSON, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberJSON(m))
	}
	return out
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		MemberName  string `json:"memberName"`
		MemberEmail string `json:"memberEmail"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	g, founder, err := s.groups.CreateGroup(r.Context(),
		sanitizeInput(req.Name), sanitizeInput(req.MemberName), sanitizeInput(req.MemberEmail))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Group  groupJSON  `json:"group"`
		Member memberJSON `json:"member"`
	}{toGroupJSON(g), toMemberJSON(founder)})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	g, err := s.groups.Group(r.Context(), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	members, err := s.groups.Members(r.Context(), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Group   groupJSON    `json:"group"`
		Members []memberJSON `json:"members"`
	}{toGroupJSON(g), toMembersJSON(members)})
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	m, err := s.groups.JoinGroup(r.Context(), groupID, sanitizeInput(req.Name), sanitizeInput(req.Email))
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The cached roster predates the join.
	s.roster.Invalidate(groupID)

	writeJSON(w, http.StatusCreated, toMemberJSON(m))
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.groups.Members(r.Context(), r.PathValue("groupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Members []memberJSON `json:"members"`
	}{toMembersJSON(members)})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.groups.Balances(r.Context(), r.PathValue("groupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Balances []balanceJSON `json:"balances"`
	}{toBalancesJSON(balances)})
}

func (s *Server) handleDebtPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.groups.DebtPlan(r.Context(), r.PathValue("groupID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Transfers []transferJSON `json:"transfers"`
	}{toTransfersJSON(plan)})
}
