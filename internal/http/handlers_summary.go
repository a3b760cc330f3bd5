package http

import (
	"net/http"

	"bilancio/internal/core"
)

type summaryResponse struct {
	Month string `json:"month"`

	TotalBudgetedCents  int64 `json:"total_budgeted_cents"`
	TotalSpentCents     int64 `json:"total_spent_cents"`
	PaidBillsCents      int64 `json:"paid_bills_cents"`
	ExpensesActualCents int64 `json:"expenses_actual_cents"`
	DebtPaymentsCents   int64 `json:"debt_payments_cents"`
	TotalIncomeCents    int64 `json:"total_income_cents"`

	Debts debtOverviewResponse `json:"debts"`
}

type debtOverviewResponse struct {
	TotalDebts            int   `json:"total_debts"`
	TotalAmountCents      int64 `json:"total_amount_cents"`
	TotalPaidCents        int64 `json:"total_paid_cents"`
	TotalRemainingCents   int64 `json:"total_remaining_cents"`
	NegotiatedCount       int   `json:"negotiated_count"`
	MonthlyInstallmentSum int64 `json:"monthly_installment_sum_cents"`
}

func toSummaryResponse(s core.FinanceSummary) summaryResponse {
	return summaryResponse{
		Month:               s.Month.String(),
		TotalBudgetedCents:  s.TotalBudgetedCents,
		TotalSpentCents:     s.TotalSpentCents,
		PaidBillsCents:      s.PaidBillsCents,
		ExpensesActualCents: s.ExpensesActualCents,
		DebtPaymentsCents:   s.DebtPaymentsCents,
		TotalIncomeCents:    s.TotalIncomeCents,
		Debts: debtOverviewResponse{
			TotalDebts:            s.Debts.TotalDebts,
			TotalAmountCents:      s.Debts.TotalAmountCents,
			TotalPaidCents:        s.Debts.TotalPaidCents,
			TotalRemainingCents:   s.Debts.TotalRemainingCents,
			NegotiatedCount:       s.Debts.NegotiatedCount,
			MonthlyInstallmentSum: s.Debts.MonthlyInstallmentSum,
		},
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	month, ok := monthFromPath(w, r)
	if !ok {
		return
	}

	summary, err := s.finance.GetSummary(r.Context(), owner, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryResponse(*summary))
}
