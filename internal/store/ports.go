// Package store defines the repository contracts the finance engine runs
// against. Backends (sqlite, memory) implement Store; the engine itself
// never sees a concrete backend.
package store

import (
	"context"

	"bilancio/internal/core"
)

// Store is the owner-scoped data access surface. Every read and mutation
// carries the owner id; cross-tenant rows are invisible by construction.
type Store interface {
	// ItemsForMonth returns the owner's items for one month, optionally
	// filtered by kind (empty kind means all kinds).
	ItemsForMonth(ctx context.Context, owner string, month core.MonthKey, kind core.ItemKind) ([]core.Item, error)

	// RecurringTemplates returns the owner's items for one month that act
	// as templates for the following month: is_recurring set and a non-nil
	// recurring group id.
	RecurringTemplates(ctx context.Context, owner string, month core.MonthKey) ([]core.Item, error)

	// ItemByGroupAndMonth returns the series instance for one month, or
	// core.ErrNotFound when the month has no instance.
	ItemByGroupAndMonth(ctx context.Context, owner, groupID string, month core.MonthKey) (*core.Item, error)

	// ItemByID returns the owner's item, or core.ErrNotFound. A foreign
	// owner's item is reported exactly like a missing one.
	ItemByID(ctx context.Context, owner string, id int64) (*core.Item, error)

	// InsertItem persists a new item and fills in its id. When the item
	// belongs to a recurring series and an instance for the same
	// (owner, group, month) tuple already exists the insert is silently
	// absorbed and inserted reports false.
	InsertItem(ctx context.Context, item *core.Item) (inserted bool, err error)

	// UpdateItem applies the patch to a single owned item.
	UpdateItem(ctx context.Context, owner string, id int64, patch core.ItemPatch) error

	// SetItemRecurring flips the recurrence flag on a single owned item.
	// A future-scoped removal uses it to make the named instance the last
	// of its series.
	SetItemRecurring(ctx context.Context, owner string, id int64, recurring bool) error

	// UpdateGroup applies the patch to every series instance, or only to
	// instances strictly after the given month when after is non-nil.
	// Returns the number of rows touched.
	UpdateGroup(ctx context.Context, owner, groupID string, after *core.MonthKey, patch core.ItemPatch) (int64, error)

	// DeleteGroup hard-deletes series instances, bounded the same way as
	// UpdateGroup. Returns the number of rows removed.
	DeleteGroup(ctx context.Context, owner, groupID string, after *core.MonthKey) (int64, error)

	// Debts
	InsertDebt(ctx context.Context, debt *core.Debt) error
	DebtByID(ctx context.Context, owner string, id int64) (*core.Debt, error)
	DebtsByOwner(ctx context.Context, owner string) ([]core.Debt, error)
	UpdateDebt(ctx context.Context, debt *core.Debt) error

	// Installment ledger, append-only.
	AppendDebtPayment(ctx context.Context, payment *core.DebtPayment) error
	DebtPaymentsTotal(ctx context.Context, owner string, month core.MonthKey) (int64, error)
}

// Repository is a Store that can scope a unit of work transactionally:
// either every mutation inside fn commits, or none do.
type Repository interface {
	Store

	// InTx runs fn against a transaction-bound Store. fn returning an
	// error rolls the whole unit of work back.
	InTx(ctx context.Context, fn func(Store) error) error

	Close() error
}
