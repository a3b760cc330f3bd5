package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

// SummaryAggregator derives the monthly KPI block from current rows. It
// performs no writes and keeps no cache: every call recomputes from the
// store.
type SummaryAggregator struct {
	repo store.Repository
}

func NewSummaryAggregator(repo store.Repository) *SummaryAggregator {
	return &SummaryAggregator{repo: repo}
}

// Summarize computes the owner's KPIs for one month.
//
// Budgeted is expected bills + expected variable expenses + the installment
// sum of active negotiated debts. Spent is paid bills + actual expenses +
// ledger payments recorded in the month. Exact sums, never estimates.
// Canceled instances count toward neither.
func (a *SummaryAggregator) Summarize(ctx context.Context, owner string, month core.MonthKey) (*core.FinanceSummary, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}

	items, err := a.repo.ItemsForMonth(ctx, owner, month, "")
	if err != nil {
		return nil, fmt.Errorf("load month items: %w", err)
	}

	summary := core.FinanceSummary{Month: month}

	for _, it := range items {
		if it.Status == core.StatusCanceled {
			continue
		}
		switch it.Kind {
		case core.KindBill:
			summary.TotalBudgetedCents += it.AmountCents
			if it.Status == core.StatusPaid {
				summary.PaidBillsCents += it.AmountCents
			}
		case core.KindExpense:
			summary.TotalBudgetedCents += it.AmountCents
			summary.ExpensesActualCents += it.ActualCents
		case core.KindIncome:
			summary.TotalIncomeCents += it.AmountCents
		}
	}

	debts, err := a.repo.DebtsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load debts: %w", err)
	}

	for _, d := range debts {
		summary.Debts.TotalDebts++
		summary.Debts.TotalAmountCents += d.TotalAmountCents
		if !d.IsNegotiated {
			// Tracked but unnegotiated: visible to debt counts, invisible
			// to every installment-derived figure.
			continue
		}
		summary.Debts.NegotiatedCount++
		summary.Debts.TotalPaidCents += int64(d.CurrentInstallment-1) * d.InstallmentCents
		if d.Status == core.DebtActive {
			summary.Debts.MonthlyInstallmentSum += d.InstallmentCents
		}
	}
	summary.Debts.TotalRemainingCents = summary.Debts.TotalAmountCents - summary.Debts.TotalPaidCents

	payments, err := a.repo.DebtPaymentsTotal(ctx, owner, month)
	if err != nil {
		return nil, fmt.Errorf("sum debt payments: %w", err)
	}
	summary.DebtPaymentsCents = payments

	summary.TotalBudgetedCents += summary.Debts.MonthlyInstallmentSum
	summary.TotalSpentCents = summary.PaidBillsCents + summary.ExpensesActualCents + summary.DebtPaymentsCents

	return &summary, nil
}
