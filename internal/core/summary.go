package core

// DebtOverview aggregates the owner's debt position. Counts cover every
// debt; the money figures derived from installments cover negotiated
// debts only.
type DebtOverview struct {
	TotalDebts            int
	TotalAmountCents      int64
	TotalPaidCents        int64
	TotalRemainingCents   int64
	NegotiatedCount       int
	MonthlyInstallmentSum int64
}

// FinanceSummary is the derived, non-persisted KPI block for one month.
// It is recomputed from current rows on every request.
type FinanceSummary struct {
	Month MonthKey

	TotalBudgetedCents  int64
	TotalSpentCents     int64
	PaidBillsCents      int64
	ExpensesActualCents int64
	DebtPaymentsCents   int64
	TotalIncomeCents    int64

	Debts DebtOverview
}
