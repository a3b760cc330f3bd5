package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Engine failure kinds. Every error returned across the service boundary
// wraps one of these three so callers can map them without string matching.
var (
	// ErrNotFound covers both a missing record and a record owned by another
	// tenant; the two must be indistinguishable to the caller.
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidInput       = errors.New("invalid input")
)

// Field-level validation errors, all wrapping ErrInvalidInput.
var (
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrEmptyName     = fmt.Errorf("%w: empty name", ErrInvalidInput)
	ErrInvalidKind   = fmt.Errorf("%w: invalid item kind", ErrInvalidInput)
	ErrInvalidDueDay = fmt.Errorf("%w: due day out of range", ErrInvalidInput)
)

type ItemKind string

const (
	KindBill    ItemKind = "bill"
	KindIncome  ItemKind = "income"
	KindExpense ItemKind = "expense"
)

func (k ItemKind) Valid() bool {
	switch k {
	case KindBill, KindIncome, KindExpense:
		return true
	}
	return false
}

type ItemStatus string

const (
	// Bills
	StatusPending  ItemStatus = "pending"
	StatusPaid     ItemStatus = "paid"
	StatusOverdue  ItemStatus = "overdue"
	StatusCanceled ItemStatus = "canceled"

	// Incomes reuse pending/canceled plus:
	StatusReceived ItemStatus = "received"

	// Variable expenses
	StatusActive ItemStatus = "active"
)

// InitialStatus returns the status a freshly materialized instance of the
// kind starts in.
func (k ItemKind) InitialStatus() ItemStatus {
	switch k {
	case KindBill, KindIncome:
		return StatusPending
	default:
		return StatusActive
	}
}

// ValidStatus reports whether s belongs to the kind's state set.
func (k ItemKind) ValidStatus(s ItemStatus) bool {
	switch k {
	case KindBill:
		return s == StatusPending || s == StatusPaid || s == StatusOverdue || s == StatusCanceled
	case KindIncome:
		return s == StatusPending || s == StatusReceived || s == StatusCanceled
	case KindExpense:
		return s == StatusActive || s == StatusCanceled
	}
	return false
}

// Scope is the breadth of a mutation over a recurring series.
type Scope string

const (
	ScopeThis   Scope = "this"
	ScopeFuture Scope = "future"
	ScopeAll    Scope = "all"
)

// ParseScope maps the caller-supplied scope string, defaulting to "this"
// when empty.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeThis, nil
	case ScopeThis, ScopeFuture, ScopeAll:
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, s)
}

// Item is one month's instance of a bill, income or variable expense.
// Instances of a recurring series share a RecurringGroupID; at most one
// instance exists per (owner, group, month).
type Item struct {
	ID               int64
	OwnerID          string
	Kind             ItemKind
	Name             string
	Category         string
	AmountCents      int64 // expected amount (bill amount, income amount, planned expense)
	ActualCents      int64 // actual amount, variable expenses only
	DueDay           int   // bills only, 0 when unset
	MonthKey         MonthKey
	Status           ItemStatus
	IsRecurring      bool
	RecurringGroupID *string
	Currency         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (it Item) Validate() error {
	if !it.Kind.Valid() {
		return ErrInvalidKind
	}
	if strings.TrimSpace(it.OwnerID) == "" {
		return fmt.Errorf("%w: empty owner id", ErrInvalidInput)
	}
	if strings.TrimSpace(it.Name) == "" {
		return ErrEmptyName
	}
	if len(it.Name) > 200 {
		return fmt.Errorf("%w: name too long (max 200 characters)", ErrInvalidInput)
	}
	if it.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if it.ActualCents < 0 {
		return ErrInvalidAmount
	}
	if err := it.MonthKey.Validate(); err != nil {
		return err
	}
	if it.Kind == KindBill && (it.DueDay < 1 || it.DueDay > 31) {
		return ErrInvalidDueDay
	}
	if it.Status != "" && !it.Kind.ValidStatus(it.Status) {
		return fmt.Errorf("%w: status %q not valid for kind %q", ErrInvalidInput, it.Status, it.Kind)
	}
	return nil
}

// ItemPatch is a partial update to an item. Nil fields are left unchanged.
// Identity fields (id, owner, month, series) are deliberately not patchable.
type ItemPatch struct {
	Name        *string
	Category    *string
	AmountCents *int64
	ActualCents *int64
	DueDay      *int
	Status      *ItemStatus
	Currency    *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ItemPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.AmountCents == nil &&
		p.ActualCents == nil && p.DueDay == nil && p.Status == nil && p.Currency == nil
}

func (p ItemPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrEmptyName
	}
	if p.AmountCents != nil && *p.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if p.ActualCents != nil && *p.ActualCents < 0 {
		return ErrInvalidAmount
	}
	if p.DueDay != nil && (*p.DueDay < 1 || *p.DueDay > 31) {
		return ErrInvalidDueDay
	}
	return nil
}

// Apply returns a copy of it with the patch applied.
func (p ItemPatch) Apply(it Item) Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Category != nil {
		it.Category = *p.Category
	}
	if p.AmountCents != nil {
		it.AmountCents = *p.AmountCents
	}
	if p.ActualCents != nil {
		it.ActualCents = *p.ActualCents
	}
	if p.DueDay != nil {
		it.DueDay = *p.DueDay
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	if p.Currency != nil {
		it.Currency = *p.Currency
	}
	return it
}

type DebtStatus string

const (
	DebtActive    DebtStatus = "active"
	DebtPaidOff   DebtStatus = "paid_off"
	DebtSettled   DebtStatus = "settled"
	DebtDefaulted DebtStatus = "defaulted"
)

// Debt is a tracked liability. A debt contributes to monthly installment
// sums only after negotiation installs a payment plan.
type Debt struct {
	ID                 int64
	OwnerID            string
	Name               string
	Creditor           string
	TotalAmountCents   int64
	IsNegotiated       bool
	TotalInstallments  int   // 0 when not negotiated
	InstallmentCents   int64 // 0 when not negotiated
	CurrentInstallment int   // 1-based
	DueDay             int   // 0 when not negotiated
	Status             DebtStatus
	Currency           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.OwnerID) == "" {
		return fmt.Errorf("%w: empty owner id", ErrInvalidInput)
	}
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if d.TotalAmountCents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// NegotiationPlan converts a tracked debt into an installment plan.
type NegotiationPlan struct {
	TotalInstallments int
	InstallmentCents  int64
	DueDay            int
}

func (p NegotiationPlan) Validate() error {
	if p.TotalInstallments < 1 {
		return fmt.Errorf("%w: installment count must be positive", ErrInvalidInput)
	}
	if p.InstallmentCents <= 0 {
		return ErrInvalidAmount
	}
	if p.DueDay < 1 || p.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

// DebtPayment is one row of the append-only installment ledger. Ledger rows
// are never mutated or deleted; KPI derivation reads them independently from
// the debt's own counters.
type DebtPayment struct {
	ID                int64
	OwnerID           string
	DebtID            int64
	InstallmentNumber int
	AmountCents       int64
	MonthKey          MonthKey
	CreatedAt         time.Time
}
