// Package settlement validates and commits transfers between group members.
//
// The recorder owns the only write path that needs serialization: the
// check-then-append sequence runs under a per-group mutex so two concurrent
// settlements cannot both validate against a stale balance and jointly
// overdraw a debt. Everything else (expense writes, reads) stays concurrent.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"splitledger/internal/core"
	"splitledger/internal/ledger"
)

// Store is the slice of the ledger store the recorder needs.
type Store interface {
	ReadLedger(ctx context.Context, groupID string) (core.LedgerSnapshot, error)
	SettlementByKey(ctx context.Context, groupID, key string) (core.Settlement, error)
	CreateSettlement(ctx context.Context, s core.Settlement) error
}

// Notifier broadcasts a change after it is durably committed.
type Notifier interface {
	Notify(ctx context.Context, groupID string, kind core.ChangeKind)
}

// Request is one settlement attempt.
type Request struct {
	GroupID        string
	FromMemberID   string
	ToMemberID     string
	AmountCents    int64
	IdempotencyKey string
}

type Recorder struct {
	store    Store
	notifier Notifier

	mu          sync.Mutex
	groupLocks  map[string]*sync.Mutex
	quarantined map[string]bool
}

func NewRecorder(store Store, notifier Notifier) *Recorder {
	return &Recorder{
		store:       store,
		notifier:    notifier,
		groupLocks:  make(map[string]*sync.Mutex),
		quarantined: make(map[string]bool),
	}
}

// Record validates req against a fresh ledger snapshot and appends exactly
// one settlement. Retries with the same idempotency key return the stored
// settlement instead of creating a duplicate.
func (r *Recorder) Record(ctx context.Context, req Request) (core.Settlement, error) {
	s := core.Settlement{
		ID:             uuid.NewString(),
		GroupID:        req.GroupID,
		FromMemberID:   req.FromMemberID,
		ToMemberID:     req.ToMemberID,
		Amount:         core.Money{Cents: req.AmountCents},
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.Validate(); err != nil {
		return core.Settlement{}, err
	}

	// Serialize check-then-append per group, not globally.
	lock := r.lockFor(req.GroupID)
	lock.Lock()
	defer lock.Unlock()

	if r.isQuarantined(req.GroupID) {
		return core.Settlement{}, core.ErrGroupQuarantined
	}

	// A retry after a dropped acknowledgment must not duplicate the row.
	if existing, err := r.store.SettlementByKey(ctx, req.GroupID, req.IdempotencyKey); err == nil {
		slog.InfoContext(ctx, "Settlement replayed from idempotency key",
			"group_id", req.GroupID,
			"settlement_id", existing.ID)
		return existing, nil
	} else if !errors.Is(err, core.ErrSettlementNotFound) {
		return core.Settlement{}, fmt.Errorf("lookup idempotency key: %w", err)
	}

	snap, err := r.store.ReadLedger(ctx, req.GroupID)
	if err != nil {
		return core.Settlement{}, err
	}
	if _, ok := snap.MemberByID(req.FromMemberID); !ok {
		return core.Settlement{}, core.ErrNotGroupMember
	}
	if _, ok := snap.MemberByID(req.ToMemberID); !ok {
		return core.Settlement{}, core.ErrNotGroupMember
	}

	balances := ledger.ComputeBalances(snap)
	if err := ledger.CheckConservation(req.GroupID, balances); err != nil {
		r.quarantine(req.GroupID)
		slog.ErrorContext(ctx, "Ledger conservation violated, settlements suspended",
			"error", err,
			"group_id", req.GroupID)
		return core.Settlement{}, err
	}

	// Overpayment check against the pairwise debt the current plan
	// attributes between exactly these two members.
	owed := ledger.PairwiseOwed(ledger.Solve(balances), req.FromMemberID, req.ToMemberID)
	if req.AmountCents > owed {
		return core.Settlement{}, &core.ExceedsOwedError{MaxPayableCents: owed}
	}

	if err := r.store.CreateSettlement(ctx, s); err != nil {
		// The unique key constraint backstops a racing duplicate; resolve
		// by returning whatever was stored first.
		if existing, lookupErr := r.store.SettlementByKey(ctx, req.GroupID, req.IdempotencyKey); lookupErr == nil {
			return existing, nil
		}
		return core.Settlement{}, err
	}

	slog.InfoContext(ctx, "Settlement recorded",
		"group_id", req.GroupID,
		"settlement_id", s.ID,
		"from_member_id", s.FromMemberID,
		"to_member_id", s.ToMemberID,
		"amount_cents", s.Amount.Cents)

	// Published strictly after the append committed.
	if r.notifier != nil {
		r.notifier.Notify(ctx, req.GroupID, core.ChangeSettlementRecorded)
	}
	return s, nil
}

func (r *Recorder) lockFor(groupID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.groupLocks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		r.groupLocks[groupID] = lock
	}
	return lock
}

func (r *Recorder) quarantine(groupID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quarantined[groupID] = true
}

func (r *Recorder) isQuarantined(groupID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quarantined[groupID]
}
