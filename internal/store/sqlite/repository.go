// Package sqlite implements the finance store on SQLite. The schema carries
// the engine's concurrency backstop: a unique index over
// (owner_id, recurring_group_id, month_key) absorbs concurrent generation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/store"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
	q  querier
}

var _ store.Repository = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
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

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, q: querier{db: db}}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InTx runs fn inside one database transaction.
func (r *Repository) InTx(ctx context.Context, fn func(store.Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(querier{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) ItemsForMonth(ctx context.Context, owner string, month core.MonthKey, kind core.ItemKind) ([]core.Item, error) {
	return r.q.ItemsForMonth(ctx, owner, month, kind)
}

func (r *Repository) RecurringTemplates(ctx context.Context, owner string, month core.MonthKey) ([]core.Item, error) {
	return r.q.RecurringTemplates(ctx, owner, month)
}

func (r *Repository) ItemByGroupAndMonth(ctx context.Context, owner, groupID string, month core.MonthKey) (*core.Item, error) {
	return r.q.ItemByGroupAndMonth(ctx, owner, groupID, month)
}

func (r *Repository) ItemByID(ctx context.Context, owner string, id int64) (*core.Item, error) {
	return r.q.ItemByID(ctx, owner, id)
}

func (r *Repository) InsertItem(ctx context.Context, item *core.Item) (bool, error) {
	return r.q.InsertItem(ctx, item)
}

func (r *Repository) UpdateItem(ctx context.Context, owner string, id int64, patch core.ItemPatch) error {
	return r.q.UpdateItem(ctx, owner, id, patch)
}

func (r *Repository) SetItemRecurring(ctx context.Context, owner string, id int64, recurring bool) error {
	return r.q.SetItemRecurring(ctx, owner, id, recurring)
}

func (r *Repository) UpdateGroup(ctx context.Context, owner, groupID string, after *core.MonthKey, patch core.ItemPatch) (int64, error) {
	return r.q.UpdateGroup(ctx, owner, groupID, after, patch)
}

func (r *Repository) DeleteGroup(ctx context.Context, owner, groupID string, after *core.MonthKey) (int64, error) {
	return r.q.DeleteGroup(ctx, owner, groupID, after)
}

func (r *Repository) InsertDebt(ctx context.Context, debt *core.Debt) error {
	return r.q.InsertDebt(ctx, debt)
}

func (r *Repository) DebtByID(ctx context.Context, owner string, id int64) (*core.Debt, error) {
	return r.q.DebtByID(ctx, owner, id)
}

func (r *Repository) DebtsByOwner(ctx context.Context, owner string) ([]core.Debt, error) {
	return r.q.DebtsByOwner(ctx, owner)
}

func (r *Repository) UpdateDebt(ctx context.Context, debt *core.Debt) error {
	return r.q.UpdateDebt(ctx, debt)
}

func (r *Repository) AppendDebtPayment(ctx context.Context, payment *core.DebtPayment) error {
	return r.q.AppendDebtPayment(ctx, payment)
}

func (r *Repository) DebtPaymentsTotal(ctx context.Context, owner string, month core.MonthKey) (int64, error) {
	return r.q.DebtPaymentsTotal(ctx, owner, month)
}

// RecordAuditEvent persists one row of the audit trail consumed from the
// finance event stream. Not part of the engine's Store contract; only the
// worker writes here.
func (r *Repository) RecordAuditEvent(ctx context.Context, owner, eventType string, entityID int64, monthKey string, occurredAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (owner_id, event_type, entity_id, month_key, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		owner, eventType, entityID, monthKey, occurredAt.UTC())
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query methods
// serve direct calls and transaction-scoped calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type querier struct {
	db dbtx
}

var _ store.Store = querier{}

const itemColumns = `id, owner_id, kind, name, category, amount_cents, actual_cents,
	due_day, month_key, status, is_recurring, recurring_group_id, currency,
	created_at, updated_at`

func (q querier) ItemsForMonth(ctx context.Context, owner string, month core.MonthKey, kind core.ItemKind) ([]core.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE owner_id = ? AND month_key = ?`
	args := []any{owner, month.String()}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items for month: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (q querier) RecurringTemplates(ctx context.Context, owner string, month core.MonthKey) ([]core.Item, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE owner_id = ? AND month_key = ? AND is_recurring = 1 AND recurring_group_id IS NOT NULL
		ORDER BY id`,
		owner, month.String())
	if err != nil {
		return nil, fmt.Errorf("query recurring templates: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (q querier) ItemByGroupAndMonth(ctx context.Context, owner, groupID string, month core.MonthKey) (*core.Item, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE owner_id = ? AND recurring_group_id = ? AND month_key = ?`,
		owner, groupID, month.String())
	return scanItem(row)
}

func (q querier) ItemByID(ctx context.Context, owner string, id int64) (*core.Item, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE owner_id = ? AND id = ?`,
		owner, id)
	return scanItem(row)
}

func (q querier) InsertItem(ctx context.Context, item *core.Item) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO items (owner_id, kind, name, category, amount_cents, actual_cents,
			due_day, month_key, status, is_recurring, recurring_group_id, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, recurring_group_id, month_key)
			WHERE recurring_group_id IS NOT NULL DO NOTHING`,
		item.OwnerID, string(item.Kind), item.Name, item.Category,
		item.AmountCents, item.ActualCents, item.DueDay, item.MonthKey.String(),
		string(item.Status), boolToInt(item.IsRecurring), item.RecurringGroupID,
		item.Currency)
	if err != nil {
		return false, fmt.Errorf("insert item: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert item rows affected: %w", err)
	}
	if n == 0 {
		// Duplicate (owner, group, month) tuple absorbed by the unique index.
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("insert item last id: %w", err)
	}
	item.ID = id
	return true, nil
}

func (q querier) UpdateItem(ctx context.Context, owner string, id int64, patch core.ItemPatch) error {
	set, args := patchClauses(patch)
	if len(set) == 0 {
		// Still verify the item exists and belongs to the owner.
		_, err := q.ItemByID(ctx, owner, id)
		return err
	}
	args = append(args, owner, id)

	res, err := q.db.ExecContext(ctx,
		`UPDATE items SET `+strings.Join(set, ", ")+` WHERE owner_id = ? AND id = ?`,
		args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q querier) SetItemRecurring(ctx context.Context, owner string, id int64, recurring bool) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE items SET is_recurring = ?, updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND id = ?`,
		boolToInt(recurring), owner, id)
	if err != nil {
		return fmt.Errorf("set item recurring: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set item recurring rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q querier) UpdateGroup(ctx context.Context, owner, groupID string, after *core.MonthKey, patch core.ItemPatch) (int64, error) {
	set, args := patchClauses(patch)
	if len(set) == 0 {
		return 0, nil
	}

	query := `UPDATE items SET ` + strings.Join(set, ", ") +
		` WHERE owner_id = ? AND recurring_group_id = ?`
	args = append(args, owner, groupID)
	if after != nil {
		// month_key is fixed-width zero-padded, so text comparison orders
		// months correctly.
		query += ` AND month_key > ?`
		args = append(args, after.String())
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update group: %w", err)
	}
	return res.RowsAffected()
}

func (q querier) DeleteGroup(ctx context.Context, owner, groupID string, after *core.MonthKey) (int64, error) {
	query := `DELETE FROM items WHERE owner_id = ? AND recurring_group_id = ?`
	args := []any{owner, groupID}
	if after != nil {
		query += ` AND month_key > ?`
		args = append(args, after.String())
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete group: %w", err)
	}
	return res.RowsAffected()
}

const debtColumns = `id, owner_id, name, creditor, total_amount_cents, is_negotiated,
	total_installments, installment_cents, current_installment, due_day, status,
	currency, created_at, updated_at`

func (q querier) InsertDebt(ctx context.Context, debt *core.Debt) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO debts (owner_id, name, creditor, total_amount_cents, is_negotiated,
			total_installments, installment_cents, current_installment, due_day, status, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		debt.OwnerID, debt.Name, debt.Creditor, debt.TotalAmountCents,
		boolToInt(debt.IsNegotiated), debt.TotalInstallments, debt.InstallmentCents,
		debt.CurrentInstallment, debt.DueDay, string(debt.Status), debt.Currency)
	if err != nil {
		return fmt.Errorf("insert debt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert debt last id: %w", err)
	}
	debt.ID = id
	return nil
}

func (q querier) DebtByID(ctx context.Context, owner string, id int64) (*core.Debt, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+debtColumns+` FROM debts WHERE owner_id = ? AND id = ?`,
		owner, id)
	return scanDebt(row)
}

func (q querier) DebtsByOwner(ctx context.Context, owner string) ([]core.Debt, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+debtColumns+` FROM debts WHERE owner_id = ? ORDER BY id`,
		owner)
	if err != nil {
		return nil, fmt.Errorf("query debts: %w", err)
	}
	defer rows.Close()

	var debts []core.Debt
	for rows.Next() {
		d, err := scanDebtRow(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, *d)
	}
	return debts, rows.Err()
}

func (q querier) UpdateDebt(ctx context.Context, debt *core.Debt) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE debts SET name = ?, creditor = ?, total_amount_cents = ?, is_negotiated = ?,
			total_installments = ?, installment_cents = ?, current_installment = ?,
			due_day = ?, status = ?, currency = ?, updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ? AND id = ?`,
		debt.Name, debt.Creditor, debt.TotalAmountCents, boolToInt(debt.IsNegotiated),
		debt.TotalInstallments, debt.InstallmentCents, debt.CurrentInstallment,
		debt.DueDay, string(debt.Status), debt.Currency,
		debt.OwnerID, debt.ID)
	if err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update debt rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (q querier) AppendDebtPayment(ctx context.Context, payment *core.DebtPayment) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO debt_payments (owner_id, debt_id, installment_number, amount_cents, month_key)
		VALUES (?, ?, ?, ?, ?)`,
		payment.OwnerID, payment.DebtID, payment.InstallmentNumber,
		payment.AmountCents, payment.MonthKey.String())
	if err != nil {
		return fmt.Errorf("insert debt payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert debt payment last id: %w", err)
	}
	payment.ID = id
	return nil
}

func (q querier) DebtPaymentsTotal(ctx context.Context, owner string, month core.MonthKey) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM debt_payments
		WHERE owner_id = ? AND month_key = ?`,
		owner, month.String()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum debt payments: %w", err)
	}
	return total, nil
}

func patchClauses(patch core.ItemPatch) ([]string, []any) {
	var set []string
	var args []any
	if patch.Name != nil {
		set = append(set, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Category != nil {
		set = append(set, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.AmountCents != nil {
		set = append(set, "amount_cents = ?")
		args = append(args, *patch.AmountCents)
	}
	if patch.ActualCents != nil {
		set = append(set, "actual_cents = ?")
		args = append(args, *patch.ActualCents)
	}
	if patch.DueDay != nil {
		set = append(set, "due_day = ?")
		args = append(args, *patch.DueDay)
	}
	if patch.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Currency != nil {
		set = append(set, "currency = ?")
		args = append(args, *patch.Currency)
	}
	if len(set) > 0 {
		set = append(set, "updated_at = CURRENT_TIMESTAMP")
	}
	return set, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItemFields(row rowScanner) (*core.Item, error) {
	var (
		it        core.Item
		kind      string
		monthKey  string
		status    string
		recurring int
		groupID   sql.NullString
	)
	err := row.Scan(&it.ID, &it.OwnerID, &kind, &it.Name, &it.Category,
		&it.AmountCents, &it.ActualCents, &it.DueDay, &monthKey, &status,
		&recurring, &groupID, &it.Currency, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}

	it.Kind = core.ItemKind(kind)
	it.Status = core.ItemStatus(status)
	it.IsRecurring = recurring != 0
	if groupID.Valid {
		g := groupID.String
		it.RecurringGroupID = &g
	}
	it.MonthKey, err = core.ParseMonthKey(monthKey)
	if err != nil {
		return nil, fmt.Errorf("stored month key: %w", err)
	}
	return &it, nil
}

func scanItem(row *sql.Row) (*core.Item, error) {
	it, err := scanItemFields(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return it, nil
}

func scanItems(rows *sql.Rows) ([]core.Item, error) {
	var items []core.Item
	for rows.Next() {
		it, err := scanItemFields(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func scanDebtFields(row rowScanner) (*core.Debt, error) {
	var (
		d          core.Debt
		negotiated int
		status     string
	)
	err := row.Scan(&d.ID, &d.OwnerID, &d.Name, &d.Creditor, &d.TotalAmountCents,
		&negotiated, &d.TotalInstallments, &d.InstallmentCents, &d.CurrentInstallment,
		&d.DueDay, &status, &d.Currency, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.IsNegotiated = negotiated != 0
	d.Status = core.DebtStatus(status)
	return &d, nil
}

func scanDebt(row *sql.Row) (*core.Debt, error) {
	d, err := scanDebtFields(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan debt: %w", err)
	}
	return d, nil
}

func scanDebtRow(rows *sql.Rows) (*core.Debt, error) {
	d, err := scanDebtFields(rows)
	if err != nil {
		return nil, fmt.Errorf("scan debt: %w", err)
	}
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
