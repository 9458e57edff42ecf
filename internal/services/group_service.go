// Package services orchestrates ledger operations across the SQLite store
// and the change notifier. Handlers stay thin; the rules live here and in
// the settlement recorder.
package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"splitledger/internal/core"
	"splitledger/internal/ledger"
	"splitledger/internal/storage"
)

// Notifier broadcasts a change event after the mutation committed.
type Notifier interface {
	Notify(ctx context.Context, groupID string, kind core.ChangeKind)
}

// Group ids double as invite codes, so they are short and typeable instead
// of UUIDs. The alphabet drops 0/O and 1/I to avoid transcription mistakes.
const (
	groupCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	groupCodeLen      = 8
)

func newGroupCode() (string, error) {
	buf := make([]byte, groupCodeLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate group code: %w", err)
	}
	for i, b := range buf {
		buf[i] = groupCodeAlphabet[int(b)%len(groupCodeAlphabet)]
	}
	return string(buf), nil
}

// BalanceEntry is one member's net position within a group.
type BalanceEntry struct {
	MemberID   string `json:"memberId"`
	MemberName string `json:"memberName"`
	Cents      int64  `json:"amountCents"`
}

// PlanEntry is one suggested transfer in a debt plan.
type PlanEntry struct {
	FromMemberID string `json:"fromMemberId"`
	FromName     string `json:"fromName"`
	ToMemberID   string `json:"toMemberId"`
	ToName       string `json:"toName"`
	AmountCents  int64  `json:"amountCents"`
}

// GroupService manages groups, membership and the derived balance views.
type GroupService struct {
	store *storage.SQLiteRepository

	// Concurrent plan requests for the same group collapse into one
	// snapshot read and solve.
	plans singleflight.Group
}

func NewGroupService(store *storage.SQLiteRepository) *GroupService {
	return &GroupService{store: store}
}

// CreateGroup creates a group and enrolls its founding member.
func (s *GroupService) CreateGroup(ctx context.Context, name, founderName, founderEmail string) (core.Group, core.Member, error) {
	code, err := newGroupCode()
	if err != nil {
		return core.Group{}, core.Member{}, err
	}

	now := time.Now().UTC()
	g := core.Group{ID: code, Name: name, CreatedAt: now}
	if err := g.Validate(); err != nil {
		return core.Group{}, core.Member{}, err
	}
	founder := core.Member{
		ID:       uuid.NewString(),
		GroupID:  g.ID,
		Name:     founderName,
		Email:    founderEmail,
		JoinedAt: now,
	}
	if err := founder.Validate(); err != nil {
		return core.Group{}, core.Member{}, err
	}

	if err := s.store.CreateGroup(ctx, g); err != nil {
		return core.Group{}, core.Member{}, err
	}
	if err := s.store.AddMember(ctx, founder); err != nil {
		return core.Group{}, core.Member{}, err
	}
	return g, founder, nil
}

// JoinGroup enrolls a new member by group code. The join timestamp decides
// which expenses the member will share in from now on.
func (s *GroupService) JoinGroup(ctx context.Context, groupID, name, email string) (core.Member, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return core.Member{}, err
	}

	m := core.Member{
		ID:       uuid.NewString(),
		GroupID:  groupID,
		Name:     name,
		Email:    email,
		JoinedAt: time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return core.Member{}, err
	}
	if err := s.store.AddMember(ctx, m); err != nil {
		return core.Member{}, err
	}

	slog.InfoContext(ctx, "Member joined group",
		"group_id", groupID,
		"member_id", m.ID)
	return m, nil
}

func (s *GroupService) Group(ctx context.Context, groupID string) (core.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

func (s *GroupService) Members(ctx context.Context, groupID string) ([]core.Member, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

// Balances returns every member's net position, in roster order.
func (s *GroupService) Balances(ctx context.Context, groupID string) ([]BalanceEntry, error) {
	snap, err := s.store.ReadLedger(ctx, groupID)
	if err != nil {
		return nil, err
	}

	balances := ledger.ComputeBalances(snap)
	if err := ledger.CheckConservation(groupID, balances); err != nil {
		slog.ErrorContext(ctx, "Ledger conservation violated",
			"error", err, "group_id", groupID)
		return nil, err
	}

	entries := make([]BalanceEntry, 0, len(snap.Members))
	for _, m := range snap.Members {
		entries = append(entries, BalanceEntry{
			MemberID:   m.ID,
			MemberName: m.Name,
			Cents:      balances[m.ID],
		})
	}
	return entries, nil
}

// DebtPlan returns the minimal set of transfers that settles the group.
// The plan is advisory and derived from current state; recording a
// settlement re-validates against a fresh snapshot.
func (s *GroupService) DebtPlan(ctx context.Context, groupID string) ([]PlanEntry, error) {
	v, err, _ := s.plans.Do(groupID, func() (any, error) {
		snap, err := s.store.ReadLedger(ctx, groupID)
		if err != nil {
			return nil, err
		}

		balances := ledger.ComputeBalances(snap)
		if err := ledger.CheckConservation(groupID, balances); err != nil {
			slog.ErrorContext(ctx, "Ledger conservation violated",
				"error", err, "group_id", groupID)
			return nil, err
		}

		transfers := ledger.Solve(balances)
		entries := make([]PlanEntry, 0, len(transfers))
		for _, t := range transfers {
			entry := PlanEntry{
				FromMemberID: t.FromMemberID,
				ToMemberID:   t.ToMemberID,
				AmountCents:  t.Cents,
			}
			if m, ok := snap.MemberByID(t.FromMemberID); ok {
				entry.FromName = m.Name
			}
			if m, ok := snap.MemberByID(t.ToMemberID); ok {
				entry.ToName = m.Name
			}
			entries = append(entries, entry)
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]PlanEntry), nil
}
