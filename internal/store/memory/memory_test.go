package memory

import (
	"context"
	"errors"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

func newItem(owner, group string, month core.MonthKey) core.Item {
	it := core.Item{
		OwnerID:     owner,
		Kind:        core.KindBill,
		Name:        "Rent",
		AmountCents: 95000,
		DueDay:      5,
		MonthKey:    month,
		Status:      core.StatusPending,
		Currency:    "EUR",
	}
	if group != "" {
		it.IsRecurring = true
		it.RecurringGroupID = &group
	}
	return it
}

func mustInsert(t *testing.T, s *Store, it core.Item) core.Item {
	t.Helper()
	inserted, err := s.InsertItem(context.Background(), &it)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Fatalf("insert absorbed unexpectedly")
	}
	return it
}

func TestInsertItemAssignsIDs(t *testing.T) {
	s := New()
	a := mustInsert(t, s, newItem("u1", "", core.MonthKey{Year: 2025, Month: 3}))
	b := mustInsert(t, s, newItem("u1", "", core.MonthKey{Year: 2025, Month: 3}))
	if a.ID == 0 || b.ID == 0 || a.ID == b.ID {
		t.Fatalf("expected distinct non-zero ids, got %d and %d", a.ID, b.ID)
	}
	if a.CreatedAt.IsZero() || a.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set")
	}
}

func TestInsertItemAbsorbsDuplicateTuple(t *testing.T) {
	s := New()
	month := core.MonthKey{Year: 2025, Month: 3}
	mustInsert(t, s, newItem("u1", "g1", month))

	dup := newItem("u1", "g1", month)
	inserted, err := s.InsertItem(context.Background(), &dup)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate (owner, group, month) tuple must be absorbed")
	}

	// A different month, owner or group is not a duplicate.
	for _, it := range []core.Item{
		newItem("u1", "g1", month.Next()),
		newItem("u2", "g1", month),
		newItem("u1", "g2", month),
	} {
		mustInsert(t, s, it)
	}
}

func TestOwnerIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()
	month := core.MonthKey{Year: 2025, Month: 3}
	mine := mustInsert(t, s, newItem("u1", "", month))
	mustInsert(t, s, newItem("u2", "", month))

	items, err := s.ItemsForMonth(ctx, "u1", month, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != mine.ID {
		t.Fatalf("expected only u1's item, got %+v", items)
	}

	// Foreign-owner lookups are indistinguishable from missing rows.
	if _, err := s.ItemByID(ctx, "u2", mine.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign item, got %v", err)
	}
	if err := s.UpdateItem(ctx, "u2", mine.ID, core.ItemPatch{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign update, got %v", err)
	}
	if err := s.SetItemRecurring(ctx, "u2", mine.ID, false); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign flag flip, got %v", err)
	}
}

func TestItemsForMonthKindFilter(t *testing.T) {
	s := New()
	ctx := context.Background()
	month := core.MonthKey{Year: 2025, Month: 3}

	bill := newItem("u1", "", month)
	mustInsert(t, s, bill)

	income := newItem("u1", "", month)
	income.Kind = core.KindIncome
	income.DueDay = 0
	mustInsert(t, s, income)

	got, err := s.ItemsForMonth(ctx, "u1", month, core.KindIncome)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Kind != core.KindIncome {
		t.Fatalf("expected one income, got %+v", got)
	}
}

func TestRecurringTemplates(t *testing.T) {
	s := New()
	ctx := context.Background()
	month := core.MonthKey{Year: 2025, Month: 3}

	recurring := mustInsert(t, s, newItem("u1", "g1", month))
	mustInsert(t, s, newItem("u1", "", month)) // one-off, not a template

	stopped := newItem("u1", "g2", month)
	it := mustInsert(t, s, stopped)
	if err := s.SetItemRecurring(ctx, "u1", it.ID, false); err != nil {
		t.Fatalf("flip flag: %v", err)
	}

	templates, err := s.RecurringTemplates(ctx, "u1", month)
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	if len(templates) != 1 || templates[0].ID != recurring.ID {
		t.Fatalf("expected only the active recurring item, got %+v", templates)
	}
}

func TestUpdateGroupAfterBound(t *testing.T) {
	s := New()
	ctx := context.Background()

	jan := core.MonthKey{Year: 2025, Month: 1}
	feb := core.MonthKey{Year: 2025, Month: 2}
	mar := core.MonthKey{Year: 2025, Month: 3}
	for _, m := range []core.MonthKey{jan, feb, mar} {
		mustInsert(t, s, newItem("u1", "g1", m))
	}

	amount := int64(12300)
	// Strictly-after bound: January itself stays untouched.
	n, err := s.UpdateGroup(ctx, "u1", "g1", &jan, core.ItemPatch{AmountCents: &amount})
	if err != nil {
		t.Fatalf("update group: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows touched, got %d", n)
	}

	for _, tc := range []struct {
		month core.MonthKey
		want  int64
	}{
		{jan, 95000}, {feb, amount}, {mar, amount},
	} {
		it, err := s.ItemByGroupAndMonth(ctx, "u1", "g1", tc.month)
		if err != nil {
			t.Fatalf("lookup %v: %v", tc.month, err)
		}
		if it.AmountCents != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.month, tc.want, it.AmountCents)
		}
	}

	// Unbounded: every instance.
	n, err = s.UpdateGroup(ctx, "u1", "g1", nil, core.ItemPatch{AmountCents: &amount})
	if err != nil {
		t.Fatalf("update group: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows touched, got %d", n)
	}
}

func TestDeleteGroup(t *testing.T) {
	s := New()
	ctx := context.Background()

	jan := core.MonthKey{Year: 2025, Month: 1}
	feb := core.MonthKey{Year: 2025, Month: 2}
	mar := core.MonthKey{Year: 2025, Month: 3}
	for _, m := range []core.MonthKey{jan, feb, mar} {
		mustInsert(t, s, newItem("u1", "g1", m))
	}

	n, err := s.DeleteGroup(ctx, "u1", "g1", &jan)
	if err != nil {
		t.Fatalf("delete group: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", n)
	}
	if _, err := s.ItemByGroupAndMonth(ctx, "u1", "g1", jan); err != nil {
		t.Fatalf("january instance should survive, got %v", err)
	}
	if _, err := s.ItemByGroupAndMonth(ctx, "u1", "g1", feb); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("february instance should be gone, got %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Store) error {
		it := newItem("u1", "", core.MonthKey{Year: 2025, Month: 3})
		if _, err := tx.InsertItem(ctx, &it); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error back, got %v", err)
	}

	items, err := s.ItemsForMonth(ctx, "u1", core.MonthKey{Year: 2025, Month: 3}, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("rolled-back insert leaked: %+v", items)
	}
}

func TestInTxCommits(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.InTx(ctx, func(tx store.Store) error {
		it := newItem("u1", "", core.MonthKey{Year: 2025, Month: 3})
		_, err := tx.InsertItem(ctx, &it)
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	items, err := s.ItemsForMonth(ctx, "u1", core.MonthKey{Year: 2025, Month: 3}, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected committed insert, got %d items", len(items))
	}
}

func TestDebtPaymentsLedger(t *testing.T) {
	s := New()
	ctx := context.Background()
	month := core.MonthKey{Year: 2025, Month: 3}

	debt := core.Debt{OwnerID: "u1", Name: "Loan", TotalAmountCents: 100000, Status: core.DebtActive}
	if err := s.InsertDebt(ctx, &debt); err != nil {
		t.Fatalf("insert debt: %v", err)
	}
	if debt.ID == 0 {
		t.Fatalf("debt id not assigned")
	}

	for i, p := range []core.DebtPayment{
		{OwnerID: "u1", DebtID: debt.ID, InstallmentNumber: 1, AmountCents: 10000, MonthKey: month},
		{OwnerID: "u1", DebtID: debt.ID, InstallmentNumber: 2, AmountCents: 10000, MonthKey: month},
		{OwnerID: "u1", DebtID: debt.ID, InstallmentNumber: 3, AmountCents: 10000, MonthKey: month.Next()},
		{OwnerID: "u2", DebtID: 99, InstallmentNumber: 1, AmountCents: 7777, MonthKey: month},
	} {
		pp := p
		if err := s.AppendDebtPayment(ctx, &pp); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	total, err := s.DebtPaymentsTotal(ctx, "u1", month)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 20000 {
		t.Fatalf("expected 20000 cents in %v, got %d", month, total)
	}
}

func TestDebtOwnerIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	debt := core.Debt{OwnerID: "u1", Name: "Loan", TotalAmountCents: 100000, Status: core.DebtActive}
	if err := s.InsertDebt(ctx, &debt); err != nil {
		t.Fatalf("insert debt: %v", err)
	}

	if _, err := s.DebtByID(ctx, "u2", debt.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign debt, got %v", err)
	}

	foreign := debt
	foreign.OwnerID = "u2"
	if err := s.UpdateDebt(ctx, &foreign); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign debt update, got %v", err)
	}
}
