package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
)

type createItemRequest struct {
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Actual      string `json:"actual,omitempty"`
	DueDay      int    `json:"due_day,omitempty"`
	Month       string `json:"month"`
	IsRecurring bool   `json:"is_recurring"`
	Currency    string `json:"currency,omitempty"`
}

type itemResponse struct {
	ID               int64   `json:"id"`
	Kind             string  `json:"kind"`
	Name             string  `json:"name"`
	Category         string  `json:"category,omitempty"`
	AmountCents      int64   `json:"amount_cents"`
	ActualCents      int64   `json:"actual_cents,omitempty"`
	DueDay           int     `json:"due_day,omitempty"`
	Month            string  `json:"month"`
	Status           string  `json:"status"`
	IsRecurring      bool    `json:"is_recurring"`
	RecurringGroupID *string `json:"recurring_group_id,omitempty"`
	Currency         string  `json:"currency"`
	CreatedAt        string  `json:"created_at,omitempty"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
}

func toItemResponse(it core.Item) itemResponse {
	resp := itemResponse{
		ID:               it.ID,
		Kind:             string(it.Kind),
		Name:             it.Name,
		Category:         it.Category,
		AmountCents:      it.AmountCents,
		ActualCents:      it.ActualCents,
		DueDay:           it.DueDay,
		Month:            it.MonthKey.String(),
		Status:           string(it.Status),
		IsRecurring:      it.IsRecurring,
		RecurringGroupID: it.RecurringGroupID,
		Currency:         it.Currency,
	}
	if !it.CreatedAt.IsZero() {
		resp.CreatedAt = it.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !it.UpdatedAt.IsZero() {
		resp.UpdatedAt = it.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	var req createItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	month, err := core.ParseMonthKey(req.Month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	amountCents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var actualCents int64
	if strings.TrimSpace(req.Actual) != "" {
		actualCents, err = core.ParseDecimalToCents(req.Actual)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	item := core.Item{
		OwnerID:     owner,
		Kind:        core.ItemKind(req.Kind),
		Name:        strings.TrimSpace(req.Name),
		Category:    strings.TrimSpace(req.Category),
		AmountCents: amountCents,
		ActualCents: actualCents,
		DueDay:      req.DueDay,
		MonthKey:    month,
		IsRecurring: req.IsRecurring,
		Currency:    req.Currency,
	}

	if err := s.finance.CreateItem(r.Context(), &item); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	month, ok := monthFromPath(w, r)
	if !ok {
		return
	}

	kind := core.ItemKind(r.URL.Query().Get("kind"))

	items, err := s.finance.ListItems(r.Context(), owner, month, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]itemResponse, len(items))
	for i, it := range items {
		resp[i] = toItemResponse(it)
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateItemRequest struct {
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	Amount   *string `json:"amount,omitempty"`
	Actual   *string `json:"actual,omitempty"`
	DueDay   *int    `json:"due_day,omitempty"`
	Status   *string `json:"status,omitempty"`
	Currency *string `json:"currency,omitempty"`
}

func (req updateItemRequest) toPatch() (core.ItemPatch, error) {
	var patch core.ItemPatch
	patch.Name = req.Name
	patch.Category = req.Category
	patch.DueDay = req.DueDay
	patch.Currency = req.Currency
	if req.Status != nil {
		status := core.ItemStatus(*req.Status)
		patch.Status = &status
	}
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			return core.ItemPatch{}, err
		}
		patch.AmountCents = &cents
	}
	if req.Actual != nil {
		cents, err := core.ParseDecimalToCents(*req.Actual)
		if err != nil {
			return core.ItemPatch{}, err
		}
		patch.ActualCents = &cents
	}
	return patch, nil
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	var req updateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.finance.UpdateRecurring(r.Context(), owner, id, patch, scope)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(*item))
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := idFromPath(w, r)
	if !ok {
		return
	}
	scope, ok := scopeFromRequest(w, r)
	if !ok {
		return
	}

	if err := s.finance.RemoveRecurring(r.Context(), owner, id, scope); err != nil {
		writeError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "Item removed via API",
		applog.FieldOwner, owner,
		applog.FieldItemID, id,
		applog.FieldScope, string(scope))
	w.WriteHeader(http.StatusNoContent)
}
