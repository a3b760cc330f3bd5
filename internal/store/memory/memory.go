// Package memory provides an in-process Store. It backs local development
// runs and the service tests, and enforces the same owner scoping and
// unique-tuple rules as the sqlite backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

type Store struct {
	mu sync.Mutex

	nextItemID    int64
	nextDebtID    int64
	nextPaymentID int64

	items    map[int64]core.Item
	debts    map[int64]core.Debt
	payments []core.DebtPayment
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		items: make(map[int64]core.Item),
		debts: make(map[int64]core.Debt),
	}
}

// InTx serializes the unit of work under the store lock. Mutations inside
// fn are staged on a copy and applied only when fn succeeds, mirroring the
// sqlite backend's rollback semantics.
func (s *Store) InTx(ctx context.Context, fn func(store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &Store{
		nextItemID:    s.nextItemID,
		nextDebtID:    s.nextDebtID,
		nextPaymentID: s.nextPaymentID,
		items:         make(map[int64]core.Item, len(s.items)),
		debts:         make(map[int64]core.Debt, len(s.debts)),
		payments:      append([]core.DebtPayment(nil), s.payments...),
	}
	for id, it := range s.items {
		staged.items[id] = it
	}
	for id, d := range s.debts {
		staged.debts[id] = d
	}

	if err := fn(unlocked{staged}); err != nil {
		return err
	}

	s.nextItemID = staged.nextItemID
	s.nextDebtID = staged.nextDebtID
	s.nextPaymentID = staged.nextPaymentID
	s.items = staged.items
	s.debts = staged.debts
	s.payments = staged.payments
	return nil
}

func (s *Store) Close() error { return nil }

// unlocked exposes a staged store to a transaction body without re-locking.
type unlocked struct {
	s *Store
}

func (u unlocked) ItemsForMonth(ctx context.Context, owner string, month core.MonthKey, kind core.ItemKind) ([]core.Item, error) {
	return u.s.itemsForMonthLocked(owner, month, kind), nil
}

func (u unlocked) RecurringTemplates(ctx context.Context, owner string, month core.MonthKey) ([]core.Item, error) {
	return u.s.recurringTemplatesLocked(owner, month), nil
}

func (u unlocked) ItemByGroupAndMonth(ctx context.Context, owner, groupID string, month core.MonthKey) (*core.Item, error) {
	return u.s.itemByGroupAndMonthLocked(owner, groupID, month)
}

func (u unlocked) ItemByID(ctx context.Context, owner string, id int64) (*core.Item, error) {
	return u.s.itemByIDLocked(owner, id)
}

func (u unlocked) InsertItem(ctx context.Context, item *core.Item) (bool, error) {
	return u.s.insertItemLocked(item)
}

func (u unlocked) UpdateItem(ctx context.Context, owner string, id int64, patch core.ItemPatch) error {
	return u.s.updateItemLocked(owner, id, patch)
}

func (u unlocked) SetItemRecurring(ctx context.Context, owner string, id int64, recurring bool) error {
	return u.s.setItemRecurringLocked(owner, id, recurring)
}

func (u unlocked) UpdateGroup(ctx context.Context, owner, groupID string, after *core.MonthKey, patch core.ItemPatch) (int64, error) {
	return u.s.updateGroupLocked(owner, groupID, after, patch), nil
}

func (u unlocked) DeleteGroup(ctx context.Context, owner, groupID string, after *core.MonthKey) (int64, error) {
	return u.s.deleteGroupLocked(owner, groupID, after), nil
}

func (u unlocked) InsertDebt(ctx context.Context, debt *core.Debt) error {
	u.s.insertDebtLocked(debt)
	return nil
}

func (u unlocked) DebtByID(ctx context.Context, owner string, id int64) (*core.Debt, error) {
	return u.s.debtByIDLocked(owner, id)
}

func (u unlocked) DebtsByOwner(ctx context.Context, owner string) ([]core.Debt, error) {
	return u.s.debtsByOwnerLocked(owner), nil
}

func (u unlocked) UpdateDebt(ctx context.Context, debt *core.Debt) error {
	return u.s.updateDebtLocked(debt)
}

func (u unlocked) AppendDebtPayment(ctx context.Context, payment *core.DebtPayment) error {
	u.s.appendDebtPaymentLocked(payment)
	return nil
}

func (u unlocked) DebtPaymentsTotal(ctx context.Context, owner string, month core.MonthKey) (int64, error) {
	return u.s.debtPaymentsTotalLocked(owner, month), nil
}

// Store methods below take the lock themselves so the Store is usable
// directly outside a transaction.

func (s *Store) ItemsForMonth(_ context.Context, owner string, month core.MonthKey, kind core.ItemKind) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsForMonthLocked(owner, month, kind), nil
}

func (s *Store) RecurringTemplates(_ context.Context, owner string, month core.MonthKey) ([]core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recurringTemplatesLocked(owner, month), nil
}

func (s *Store) ItemByGroupAndMonth(_ context.Context, owner, groupID string, month core.MonthKey) (*core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemByGroupAndMonthLocked(owner, groupID, month)
}

func (s *Store) ItemByID(_ context.Context, owner string, id int64) (*core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemByIDLocked(owner, id)
}

func (s *Store) InsertItem(_ context.Context, item *core.Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertItemLocked(item)
}

func (s *Store) UpdateItem(_ context.Context, owner string, id int64, patch core.ItemPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateItemLocked(owner, id, patch)
}

func (s *Store) SetItemRecurring(_ context.Context, owner string, id int64, recurring bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setItemRecurringLocked(owner, id, recurring)
}

func (s *Store) UpdateGroup(_ context.Context, owner, groupID string, after *core.MonthKey, patch core.ItemPatch) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateGroupLocked(owner, groupID, after, patch), nil
}

func (s *Store) DeleteGroup(_ context.Context, owner, groupID string, after *core.MonthKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteGroupLocked(owner, groupID, after), nil
}

func (s *Store) InsertDebt(_ context.Context, debt *core.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertDebtLocked(debt)
	return nil
}

func (s *Store) DebtByID(_ context.Context, owner string, id int64) (*core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debtByIDLocked(owner, id)
}

func (s *Store) DebtsByOwner(_ context.Context, owner string) ([]core.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debtsByOwnerLocked(owner), nil
}

func (s *Store) UpdateDebt(_ context.Context, debt *core.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateDebtLocked(debt)
}

func (s *Store) AppendDebtPayment(_ context.Context, payment *core.DebtPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendDebtPaymentLocked(payment)
	return nil
}

func (s *Store) DebtPaymentsTotal(_ context.Context, owner string, month core.MonthKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debtPaymentsTotalLocked(owner, month), nil
}

func (s *Store) itemsForMonthLocked(owner string, month core.MonthKey, kind core.ItemKind) []core.Item {
	var out []core.Item
	for _, it := range s.items {
		if it.OwnerID != owner || it.MonthKey != month {
			continue
		}
		if kind != "" && it.Kind != kind {
			continue
		}
		out = append(out, it)
	}
	sortItems(out)
	return out
}

func (s *Store) recurringTemplatesLocked(owner string, month core.MonthKey) []core.Item {
	var out []core.Item
	for _, it := range s.items {
		if it.OwnerID != owner || it.MonthKey != month {
			continue
		}
		if !it.IsRecurring || it.RecurringGroupID == nil {
			continue
		}
		out = append(out, it)
	}
	sortItems(out)
	return out
}

func (s *Store) itemByGroupAndMonthLocked(owner, groupID string, month core.MonthKey) (*core.Item, error) {
	for _, it := range s.items {
		if it.OwnerID == owner && it.MonthKey == month &&
			it.RecurringGroupID != nil && *it.RecurringGroupID == groupID {
			found := it
			return &found, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *Store) itemByIDLocked(owner string, id int64) (*core.Item, error) {
	it, ok := s.items[id]
	if !ok || it.OwnerID != owner {
		return nil, core.ErrNotFound
	}
	found := it
	return &found, nil
}

func (s *Store) insertItemLocked(item *core.Item) (bool, error) {
	if item.RecurringGroupID != nil {
		// Unique (owner, group, month) tuple: absorb the duplicate.
		if _, err := s.itemByGroupAndMonthLocked(item.OwnerID, *item.RecurringGroupID, item.MonthKey); err == nil {
			return false, nil
		}
	}
	s.nextItemID++
	item.ID = s.nextItemID
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[item.ID] = *item
	return true, nil
}

func (s *Store) updateItemLocked(owner string, id int64, patch core.ItemPatch) error {
	it, ok := s.items[id]
	if !ok || it.OwnerID != owner {
		return core.ErrNotFound
	}
	it = patch.Apply(it)
	it.UpdatedAt = time.Now().UTC()
	s.items[id] = it
	return nil
}

func (s *Store) setItemRecurringLocked(owner string, id int64, recurring bool) error {
	it, ok := s.items[id]
	if !ok || it.OwnerID != owner {
		return core.ErrNotFound
	}
	it.IsRecurring = recurring
	it.UpdatedAt = time.Now().UTC()
	s.items[id] = it
	return nil
}

func (s *Store) updateGroupLocked(owner, groupID string, after *core.MonthKey, patch core.ItemPatch) int64 {
	var n int64
	for id, it := range s.items {
		if !matchesGroup(it, owner, groupID, after) {
			continue
		}
		it = patch.Apply(it)
		it.UpdatedAt = time.Now().UTC()
		s.items[id] = it
		n++
	}
	return n
}

func (s *Store) deleteGroupLocked(owner, groupID string, after *core.MonthKey) int64 {
	var n int64
	for id, it := range s.items {
		if !matchesGroup(it, owner, groupID, after) {
			continue
		}
		delete(s.items, id)
		n++
	}
	return n
}

func (s *Store) insertDebtLocked(debt *core.Debt) {
	s.nextDebtID++
	debt.ID = s.nextDebtID
	now := time.Now().UTC()
	debt.CreatedAt = now
	debt.UpdatedAt = now
	s.debts[debt.ID] = *debt
}

func (s *Store) debtByIDLocked(owner string, id int64) (*core.Debt, error) {
	d, ok := s.debts[id]
	if !ok || d.OwnerID != owner {
		return nil, core.ErrNotFound
	}
	found := d
	return &found, nil
}

func (s *Store) debtsByOwnerLocked(owner string) []core.Debt {
	var out []core.Debt
	for _, d := range s.debts {
		if d.OwnerID == owner {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) updateDebtLocked(debt *core.Debt) error {
	existing, ok := s.debts[debt.ID]
	if !ok || existing.OwnerID != debt.OwnerID {
		return core.ErrNotFound
	}
	debt.UpdatedAt = time.Now().UTC()
	s.debts[debt.ID] = *debt
	return nil
}

func (s *Store) appendDebtPaymentLocked(payment *core.DebtPayment) {
	s.nextPaymentID++
	payment.ID = s.nextPaymentID
	payment.CreatedAt = time.Now().UTC()
	s.payments = append(s.payments, *payment)
}

func (s *Store) debtPaymentsTotalLocked(owner string, month core.MonthKey) int64 {
	var total int64
	for _, p := range s.payments {
		if p.OwnerID == owner && p.MonthKey == month {
			total += p.AmountCents
		}
	}
	return total
}

func matchesGroup(it core.Item, owner, groupID string, after *core.MonthKey) bool {
	if it.OwnerID != owner || it.RecurringGroupID == nil || *it.RecurringGroupID != groupID {
		return false
	}
	if after != nil && !it.MonthKey.After(*after) {
		return false
	}
	return true
}

func sortItems(items []core.Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}
