package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/store"
)

// DebtLifecycle advances debt installment state: it records installment
// payments, decides payoff and converts tracked debts into installment
// plans (negotiation).
type DebtLifecycle struct {
	repo store.Repository
}

func NewDebtLifecycle(repo store.Repository) *DebtLifecycle {
	return &DebtLifecycle{repo: repo}
}

// CreateDebt registers a new tracked liability. Debts start unnegotiated:
// they count toward debt totals but contribute nothing to monthly budget
// math until a plan is installed.
func (l *DebtLifecycle) CreateDebt(ctx context.Context, debt *core.Debt) error {
	if err := debt.Validate(); err != nil {
		return err
	}
	debt.IsNegotiated = false
	debt.TotalInstallments = 0
	debt.InstallmentCents = 0
	debt.DueDay = 0
	debt.CurrentInstallment = 1
	if debt.Status == "" {
		debt.Status = core.DebtActive
	}
	if debt.Currency == "" {
		debt.Currency = "EUR"
	}

	if err := l.repo.InsertDebt(ctx, debt); err != nil {
		return fmt.Errorf("insert debt: %w", err)
	}

	slog.InfoContext(ctx, "Debt created",
		applog.FieldOwner, debt.OwnerID,
		applog.FieldDebtID, debt.ID,
		"total_amount_cents", debt.TotalAmountCents)
	return nil
}

// ListDebts returns all of the owner's debts.
func (l *DebtLifecycle) ListDebts(ctx context.Context, owner string) ([]core.Debt, error) {
	return l.repo.DebtsByOwner(ctx, owner)
}

// PayInstallment records one installment payment in the given month: the
// counter advances, the debt flips to paid_off past the last installment,
// and one ledger row is appended for the installment just completed.
func (l *DebtLifecycle) PayInstallment(ctx context.Context, owner string, debtID int64, month core.MonthKey) (*core.Debt, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}

	var updated *core.Debt
	err := l.repo.InTx(ctx, func(s store.Store) error {
		debt, err := s.DebtByID(ctx, owner, debtID)
		if err != nil {
			return err
		}
		if !debt.IsNegotiated {
			return fmt.Errorf("%w: debt is not negotiated", core.ErrPreconditionFailed)
		}
		if debt.Status == core.DebtPaidOff {
			return fmt.Errorf("%w: debt is already paid off", core.ErrPreconditionFailed)
		}

		paidInstallment := debt.CurrentInstallment
		debt.CurrentInstallment++
		if debt.CurrentInstallment > debt.TotalInstallments {
			debt.Status = core.DebtPaidOff
		}

		if err := s.UpdateDebt(ctx, debt); err != nil {
			return fmt.Errorf("update debt: %w", err)
		}

		payment := core.DebtPayment{
			OwnerID:           owner,
			DebtID:            debt.ID,
			InstallmentNumber: paidInstallment,
			AmountCents:       debt.InstallmentCents,
			MonthKey:          month,
		}
		if err := s.AppendDebtPayment(ctx, &payment); err != nil {
			return fmt.Errorf("append payment: %w", err)
		}

		updated = debt
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Debt installment paid",
		applog.FieldOwner, owner,
		applog.FieldDebtID, debtID,
		"installment", updated.CurrentInstallment-1,
		"of", updated.TotalInstallments,
		"status", string(updated.Status),
		applog.FieldMonth, month.String())
	return updated, nil
}

// Negotiate installs an installment plan on a tracked debt. From this point
// the debt contributes its installment amount to the monthly budgeted sum
// for as long as it stays active.
func (l *DebtLifecycle) Negotiate(ctx context.Context, owner string, debtID int64, plan core.NegotiationPlan) (*core.Debt, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("%w: empty owner id", core.ErrInvalidInput)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	var updated *core.Debt
	err := l.repo.InTx(ctx, func(s store.Store) error {
		debt, err := s.DebtByID(ctx, owner, debtID)
		if err != nil {
			return err
		}
		if debt.IsNegotiated {
			return fmt.Errorf("%w: debt is already negotiated", core.ErrPreconditionFailed)
		}

		debt.IsNegotiated = true
		debt.TotalInstallments = plan.TotalInstallments
		debt.InstallmentCents = plan.InstallmentCents
		debt.DueDay = plan.DueDay
		debt.CurrentInstallment = 1

		if err := s.UpdateDebt(ctx, debt); err != nil {
			return fmt.Errorf("update debt: %w", err)
		}
		updated = debt
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Debt negotiated",
		applog.FieldOwner, owner,
		applog.FieldDebtID, debtID,
		"installments", plan.TotalInstallments,
		"installment_cents", plan.InstallmentCents)
	return updated, nil
}
