package http

import (
	"net/http"
	"strings"
	"time"

	"bilancio/internal/core"
)

type createDebtRequest struct {
	Name        string `json:"name"`
	Creditor    string `json:"creditor,omitempty"`
	TotalAmount string `json:"total_amount"`
	Currency    string `json:"currency,omitempty"`
}

type debtResponse struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Creditor           string `json:"creditor,omitempty"`
	TotalAmountCents   int64  `json:"total_amount_cents"`
	IsNegotiated       bool   `json:"is_negotiated"`
	TotalInstallments  int    `json:"total_installments,omitempty"`
	InstallmentCents   int64  `json:"installment_cents,omitempty"`
	CurrentInstallment int    `json:"current_installment"`
	DueDay             int    `json:"due_day,omitempty"`
	Status             string `json:"status"`
	Currency           string `json:"currency"`
	CreatedAt          string `json:"created_at,omitempty"`
}

func toDebtResponse(d core.Debt) debtResponse {
	resp := debtResponse{
		ID:                 d.ID,
		Name:               d.Name,
		Creditor:           d.Creditor,
		TotalAmountCents:   d.TotalAmountCents,
		IsNegotiated:       d.IsNegotiated,
		TotalInstallments:  d.TotalInstallments,
		InstallmentCents:   d.InstallmentCents,
		CurrentInstallment: d.CurrentInstallment,
		DueDay:             d.DueDay,
		Status:             string(d.Status),
		Currency:           d.Currency,
	}
	if !d.CreatedAt.IsZero() {
		resp.CreatedAt = d.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	var req createDebtRequest
	if !decodeBody(w, r, &req) {
		return
	}

	totalCents, err := core.ParseDecimalToCents(req.TotalAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	debt := core.Debt{
		OwnerID:          owner,
		Name:             strings.TrimSpace(req.Name),
		Creditor:         strings.TrimSpace(req.Creditor),
		TotalAmountCents: totalCents,
		Currency:         req.Currency,
	}

	if err := s.finance.CreateDebt(r.Context(), &debt); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDebtResponse(debt))
}

func (s *Server) handleListDebts(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	debts, err := s.finance.ListDebts(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]debtResponse, len(debts))
	for i, d := range debts {
		resp[i] = toDebtResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

type payInstallmentRequest struct {
	Month string `json:"month"`
}

func (s *Server) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	var req payInstallmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	month, err := core.ParseMonthKey(req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	debt, err := s.finance.PayInstallment(r.Context(), owner, id, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDebtResponse(*debt))
}

type negotiateDebtRequest struct {
	TotalInstallments int    `json:"total_installments"`
	InstallmentAmount string `json:"installment_amount"`
	DueDay            int    `json:"due_day"`
}

func (s *Server) handleNegotiateDebt(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}

	var req negotiateDebtRequest
	if !decodeBody(w, r, &req) {
		return
	}
	installmentCents, err := core.ParseDecimalToCents(req.InstallmentAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	plan := core.NegotiationPlan{
		TotalInstallments: req.TotalInstallments,
		InstallmentCents:  installmentCents,
		DueDay:            req.DueDay,
	}

	debt, err := s.finance.NegotiateDebt(r.Context(), owner, id, plan)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDebtResponse(*debt))
}
