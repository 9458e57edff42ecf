// Package storage is the durable ledger store: groups, members, expenses,
// incomes, settlements, chat and the activity log, all in SQLite.
//
// Expenses and settlements are append-only; expense deletion is a soft
// delete so the row survives for audit while leaving aggregation.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"splitledger/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// A single writer connection sidesteps SQLITE_BUSY under concurrent
	// mutations; reads share it and stay serializable.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping reports whether the database is reachable, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- groups and members ---

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)`,
		g.ID, g.Name, g.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	slog.InfoContext(ctx, "Group created", "group_id", g.ID, "name", g.Name)
	return nil
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (core.Group, error) {
	var g core.Group
	var createdAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Group{}, core.ErrGroupNotFound
	}
	if err != nil {
		return core.Group{}, fmt.Errorf("get group: %w", err)
	}
	g.CreatedAt = time.Unix(createdAt, 0).UTC()
	return g, nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, m core.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO group_members (id, group_id, name, email, joined_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.GroupID, m.Name, m.Email, m.JoinedAt.Unix())
	if isUniqueViolation(err) {
		return core.ErrAlreadyMember
	}
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context, groupID string) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, name, email, joined_at
		 FROM group_members WHERE group_id = ? ORDER BY joined_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (r *SQLiteRepository) GetMember(ctx context.Context, groupID, memberID string) (core.Member, error) {
	var m core.Member
	var joinedAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, group_id, name, email, joined_at
		 FROM group_members WHERE group_id = ? AND id = ?`, groupID, memberID).
		Scan(&m.ID, &m.GroupID, &m.Name, &m.Email, &joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, core.ErrMemberNotFound
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("get member: %w", err)
	}
	m.JoinedAt = time.Unix(joinedAt, 0).UTC()
	return m, nil
}

// --- expenses ---

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, payer_id, description, amount_cents, splittable, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GroupID, e.PayerID, e.Description, e.Amount.Cents, boolToInt(e.Splittable), e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense saved",
		"expense_id", e.ID,
		"group_id", e.GroupID,
		"amount_cents", e.Amount.Cents,
		"splittable", e.Splittable)
	return nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, groupID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, payer_id, description, amount_cents, splittable, created_at
		 FROM expenses WHERE group_id = ? AND deleted_at IS NULL
		 ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	return scanExpenses(rows)
}

// SoftDeleteExpense removes an expense from ledger aggregation. Only the
// payer may delete their own expense.
func (r *SQLiteRepository) SoftDeleteExpense(ctx context.Context, groupID, expenseID, actorID string) error {
	var payerID string
	err := r.db.QueryRowContext(ctx,
		`SELECT payer_id FROM expenses WHERE id = ? AND group_id = ? AND deleted_at IS NULL`,
		expenseID, groupID).Scan(&payerID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrExpenseNotFound
	}
	if err != nil {
		return fmt.Errorf("find expense: %w", err)
	}
	if payerID != actorID {
		return core.ErrNotExpenseOwner
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE expenses SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().Unix(), expenseID)
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}
	return nil
}

// --- incomes ---

func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (id, group_id, member_id, description, amount_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.GroupID, in.MemberID, in.Description, in.Amount.Cents, in.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create income: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, groupID string) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, member_id, description, amount_cents, created_at
		 FROM incomes WHERE group_id = ? ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var incomes []core.Income
	for rows.Next() {
		var in core.Income
		var createdAt int64
		if err := rows.Scan(&in.ID, &in.GroupID, &in.MemberID, &in.Description, &in.Amount.Cents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		in.CreatedAt = time.Unix(createdAt, 0).UTC()
		incomes = append(incomes, in)
	}
	return incomes, rows.Err()
}

// --- settlements ---

// CreateSettlement appends one settlement row. The UNIQUE(group_id,
// idempotency_key) constraint backstops the recorder's idempotency check;
// a duplicate key surfaces as ErrDuplicateIdempotencyKey, which the
// recorder resolves by re-reading the stored row.
func (r *SQLiteRepository) CreateSettlement(ctx context.Context, s core.Settlement) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settlements (id, group_id, from_member_id, to_member_id, amount_cents, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.GroupID, s.FromMemberID, s.ToMemberID, s.Amount.Cents, s.IdempotencyKey, s.CreatedAt.Unix())
	if isUniqueViolation(err) {
		return ErrDuplicateIdempotencyKey
	}
	if err != nil {
		return fmt.Errorf("create settlement: %w", err)
	}
	slog.InfoContext(ctx, "Settlement saved",
		"settlement_id", s.ID,
		"group_id", s.GroupID,
		"from_member_id", s.FromMemberID,
		"to_member_id", s.ToMemberID,
		"amount_cents", s.Amount.Cents)
	return nil
}

// ErrDuplicateIdempotencyKey signals an idempotency-key collision on insert.
var ErrDuplicateIdempotencyKey = errors.New("settlement with this idempotency key already exists")

func (r *SQLiteRepository) SettlementByKey(ctx context.Context, groupID, key string) (core.Settlement, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, group_id, from_member_id, to_member_id, amount_cents, idempotency_key, created_at
		 FROM settlements WHERE group_id = ? AND idempotency_key = ?`, groupID, key)
	s, err := scanSettlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Settlement{}, core.ErrSettlementNotFound
	}
	return s, err
}

func (r *SQLiteRepository) ListSettlements(ctx context.Context, groupID string) ([]core.Settlement, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, from_member_id, to_member_id, amount_cents, idempotency_key, created_at
		 FROM settlements WHERE group_id = ? ORDER BY created_at, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()
	return scanSettlements(rows)
}

// ReadLedger takes a consistent snapshot of everything balance computation
// needs: the group, its members with join timestamps, live expenses and all
// settlements. The snapshot runs in one transaction so no partial ledger is
// ever visible.
func (r *SQLiteRepository) ReadLedger(ctx context.Context, groupID string) (core.LedgerSnapshot, error) {
	var snap core.LedgerSnapshot

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return snap, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	var createdAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM groups WHERE id = ?`, groupID).
		Scan(&snap.Group.ID, &snap.Group.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, core.ErrGroupNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("snapshot group: %w", err)
	}
	snap.Group.CreatedAt = time.Unix(createdAt, 0).UTC()

	memberRows, err := tx.QueryContext(ctx,
		`SELECT id, group_id, name, email, joined_at
		 FROM group_members WHERE group_id = ? ORDER BY joined_at, id`, groupID)
	if err != nil {
		return snap, fmt.Errorf("snapshot members: %w", err)
	}
	snap.Members, err = scanMembers(memberRows)
	memberRows.Close()
	if err != nil {
		return snap, err
	}

	expenseRows, err := tx.QueryContext(ctx,
		`SELECT id, group_id, payer_id, description, amount_cents, splittable, created_at
		 FROM expenses WHERE group_id = ? AND deleted_at IS NULL
		 ORDER BY created_at, id`, groupID)
	if err != nil {
		return snap, fmt.Errorf("snapshot expenses: %w", err)
	}
	snap.Expenses, err = scanExpenses(expenseRows)
	expenseRows.Close()
	if err != nil {
		return snap, err
	}

	settlementRows, err := tx.QueryContext(ctx,
		`SELECT id, group_id, from_member_id, to_member_id, amount_cents, idempotency_key, created_at
		 FROM settlements WHERE group_id = ? ORDER BY created_at, id`, groupID)
	if err != nil {
		return snap, fmt.Errorf("snapshot settlements: %w", err)
	}
	snap.Settlements, err = scanSettlements(settlementRows)
	settlementRows.Close()
	if err != nil {
		return snap, err
	}

	if err := tx.Commit(); err != nil {
		return snap, fmt.Errorf("commit snapshot: %w", err)
	}
	return snap, nil
}

// --- chat ---

func (r *SQLiteRepository) SaveChatMessage(ctx context.Context, msg core.ChatMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, group_id, sender_id, sender_name, content, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.GroupID, msg.SenderID, msg.SenderName, msg.Content, msg.SentAt.Unix())
	if err != nil {
		return fmt.Errorf("save chat message: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListChatMessages(ctx context.Context, groupID string, limit int) ([]core.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, group_id, sender_id, sender_name, content, sent_at
		 FROM chat_messages WHERE group_id = ?
		 ORDER BY sent_at DESC, id DESC LIMIT ?`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []core.ChatMessage
	for rows.Next() {
		var m core.ChatMessage
		var sentAt int64
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.SenderName, &m.Content, &sentAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.SentAt = time.Unix(sentAt, 0).UTC()
		msgs = append(msgs, m)
	}
	// Oldest first for display.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, rows.Err()
}

// --- activity log ---

func (r *SQLiteRepository) AppendActivity(ctx context.Context, ev core.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_log (group_id, change_kind, occurred_at) VALUES (?, ?, ?)`,
		ev.GroupID, string(ev.Kind), ev.OccurredAt.Unix())
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListActivity(ctx context.Context, groupID string, limit int) ([]core.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT group_id, change_kind, occurred_at
		 FROM activity_log WHERE group_id = ?
		 ORDER BY occurred_at DESC, id DESC LIMIT ?`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		var ev core.Event
		var kind string
		var occurredAt int64
		if err := rows.Scan(&ev.GroupID, &kind, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		ev.Kind = core.ChangeKind(kind)
		ev.OccurredAt = time.Unix(occurredAt, 0).UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

// --- scan helpers ---

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func scanMembers(rows *sql.Rows) ([]core.Member, error) {
	var members []core.Member
	for rows.Next() {
		var m core.Member
		var joinedAt int64
		if err := rows.Scan(&m.ID, &m.GroupID, &m.Name, &m.Email, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.JoinedAt = time.Unix(joinedAt, 0).UTC()
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	var expenses []core.Expense
	for rows.Next() {
		var e core.Expense
		var splittable int64
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.GroupID, &e.PayerID, &e.Description, &e.Amount.Cents, &splittable, &createdAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Splittable = splittable != 0
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func scanSettlements(rows *sql.Rows) ([]core.Settlement, error) {
	var settlements []core.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row rowScanner) (core.Settlement, error) {
	var s core.Settlement
	var createdAt int64
	err := row.Scan(&s.ID, &s.GroupID, &s.FromMemberID, &s.ToMemberID, &s.Amount.Cents, &s.IdempotencyKey, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("scan settlement: %w", err)
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return s, nil
}
