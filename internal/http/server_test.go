package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bilancio/internal/services"
	"bilancio/internal/store/memory"
)

func newTestServer() *Server {
	return NewServer(":0", services.NewFinanceService(memory.New(), nil))
}

func doJSON(t *testing.T, srv *Server, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer()
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer()
	doJSON(t, srv, http.MethodGet, "/healthz", "", "")

	rr := doJSON(t, srv, http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	// The healthz request is counted; the metrics request itself is still
	// in flight when the snapshot is taken.
	if !strings.Contains(body, "http_requests_total 1\n") {
		t.Fatalf("request counter missing or wrong:\n%s", body)
	}
	if !strings.Contains(body, "http_request_duration_avg_microseconds") {
		t.Fatalf("duration gauge missing:\n%s", body)
	}
}

func TestMissingOwnerHeader(t *testing.T) {
	srv := newTestServer()
	rr := doJSON(t, srv, http.MethodGet, "/api/months/2025-03/items", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreateAndListItems(t *testing.T) {
	srv := newTestServer()

	rr := doJSON(t, srv, http.MethodPost, "/api/items", "u1",
		`{"kind":"bill","name":"Rent","category":"Housing","amount":"950.00","due_day":5,"month":"2025-03","is_recurring":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	var created itemResponse
	decodeInto(t, rr, &created)
	if created.ID == 0 || created.AmountCents != 95000 || created.Status != "pending" {
		t.Fatalf("unexpected created item: %+v", created)
	}
	if !created.IsRecurring || created.RecurringGroupID == nil || *created.RecurringGroupID == "" {
		t.Fatalf("recurring item should get a series id: %+v", created)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/months/2025-03/items", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var items []itemResponse
	decodeInto(t, rr, &items)
	if len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("expected the created item back, got %+v", items)
	}
}

func TestListMaterializesNextMonth(t *testing.T) {
	srv := newTestServer()

	doJSON(t, srv, http.MethodPost, "/api/items", "u1",
		`{"kind":"bill","name":"Rent","amount":"950.00","due_day":5,"month":"2025-03","is_recurring":true}`)

	rr := doJSON(t, srv, http.MethodGet, "/api/months/2025-04/items", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	var items []itemResponse
	decodeInto(t, rr, &items)
	if len(items) != 1 {
		t.Fatalf("expected april instance generated on read, got %+v", items)
	}
	if items[0].Month != "2025-04" || items[0].Status != "pending" {
		t.Fatalf("unexpected generated instance: %+v", items[0])
	}
}

func TestCreateItemValidationErrors(t *testing.T) {
	srv := newTestServer()
	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad amount", `{"kind":"bill","name":"X","amount":"-1","due_day":1,"month":"2025-03"}`, http.StatusUnprocessableEntity},
		{"bad month", `{"kind":"bill","name":"X","amount":"1","due_day":1,"month":"2025-3"}`, http.StatusUnprocessableEntity},
		{"bad kind", `{"kind":"loan","name":"X","amount":"1","due_day":1,"month":"2025-03"}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"kind":"bill","name":"X","amount":"1","due_day":1,"month":"2025-03","surprise":true}`, http.StatusBadRequest},
		{"malformed json", `{not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/items", "u1", tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status expected %d, got %d (%s)", tc.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestUpdateItemScoped(t *testing.T) {
	srv := newTestServer()

	rr := doJSON(t, srv, http.MethodPost, "/api/items", "u1",
		`{"kind":"bill","name":"Rent","amount":"950.00","due_day":5,"month":"2025-03","is_recurring":true}`)
	var created itemResponse
	decodeInto(t, rr, &created)

	// Materialize april, then patch march with scope=future.
	doJSON(t, srv, http.MethodGet, "/api/months/2025-04/items", "u1", "")

	rr = doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/items/%d?scope=future", created.ID), "u1",
		`{"amount":"1000.00"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	var updated itemResponse
	decodeInto(t, rr, &updated)
	if updated.AmountCents != 100000 {
		t.Fatalf("named instance not patched: %+v", updated)
	}

	var april []itemResponse
	rr = doJSON(t, srv, http.MethodGet, "/api/months/2025-04/items", "u1", "")
	decodeInto(t, rr, &april)
	if len(april) != 1 || april[0].AmountCents != 100000 {
		t.Fatalf("future sibling not patched: %+v", april)
	}
}

func TestUpdateItemBadScope(t *testing.T) {
	srv := newTestServer()
	rr := doJSON(t, srv, http.MethodPatch, "/api/items/1?scope=everything", "u1", `{"amount":"1"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown scope, got %d", rr.Code)
	}
}

func TestRemoveItem(t *testing.T) {
	srv := newTestServer()

	rr := doJSON(t, srv, http.MethodPost, "/api/items", "u1",
		`{"kind":"bill","name":"Rent","amount":"950.00","due_day":5,"month":"2025-03","is_recurring":true}`)
	var created itemResponse
	decodeInto(t, rr, &created)

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/items/%d", created.ID), "u1", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}

	// Default scope soft-cancels: the row is still listed, as canceled.
	var items []itemResponse
	rr = doJSON(t, srv, http.MethodGet, "/api/months/2025-03/items", "u1", "")
	decodeInto(t, rr, &items)
	if len(items) != 1 || items[0].Status != "canceled" {
		t.Fatalf("expected soft-canceled row, got %+v", items)
	}
}

func TestItemNotFoundAndForeignOwner(t *testing.T) {
	srv := newTestServer()

	rr := doJSON(t, srv, http.MethodPost, "/api/items", "u1",
		`{"kind":"bill","name":"Rent","amount":"950.00","due_day":5,"month":"2025-03"}`)
	var created itemResponse
	decodeInto(t, rr, &created)

	// Missing id and foreign owner are both plain 404s.
	for _, tc := range []struct {
		owner string
		id    int64
	}{
		{"u1", 9999},
		{"u2", created.ID},
	} {
		rr := doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/items/%d", tc.id), tc.owner, `{"amount":"1"}`)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("owner=%s id=%d: expected 404, got %d", tc.owner, tc.id, rr.Code)
		}
	}
}

func TestDebtLifecycleOverAPI(t *testing.T) {
	srv := newTestServer()

	rr := doJSON(t, srv, http.MethodPost, "/api/debts", "u1",
		`{"name":"Car loan","creditor":"Bank","total_amount":"3000.00"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create debt status=%d body=%s", rr.Code, rr.Body.String())
	}
	var debt debtResponse
	decodeInto(t, rr, &debt)
	if debt.TotalAmountCents != 300000 || debt.IsNegotiated {
		t.Fatalf("unexpected debt: %+v", debt)
	}

	// Paying before negotiation conflicts.
	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/debts/%d/pay", debt.ID), "u1", `{"month":"2025-03"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 before negotiation, got %d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/debts/%d/negotiate", debt.ID), "u1",
		`{"total_installments":3,"installment_amount":"1000.00","due_day":10}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("negotiate status=%d body=%s", rr.Code, rr.Body.String())
	}
	decodeInto(t, rr, &debt)
	if !debt.IsNegotiated || debt.TotalInstallments != 3 || debt.InstallmentCents != 100000 {
		t.Fatalf("plan not installed: %+v", debt)
	}

	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/debts/%d/pay", debt.ID), "u1", `{"month":"2025-03"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("pay status=%d body=%s", rr.Code, rr.Body.String())
	}
	decodeInto(t, rr, &debt)
	if debt.CurrentInstallment != 2 || debt.Status != "active" {
		t.Fatalf("unexpected debt after payment: %+v", debt)
	}

	var debts []debtResponse
	rr = doJSON(t, srv, http.MethodGet, "/api/debts", "u1", "")
	decodeInto(t, rr, &debts)
	if len(debts) != 1 {
		t.Fatalf("expected one debt, got %+v", debts)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	srv := newTestServer()

	doJSON(t, srv, http.MethodPost, "/api/items", "u1",
		`{"kind":"bill","name":"Rent","amount":"15.00","due_day":5,"month":"2025-03"}`)
	rr := doJSON(t, srv, http.MethodPost, "/api/debts", "u1",
		`{"name":"Loan","total_amount":"50.00"}`)
	var debt debtResponse
	decodeInto(t, rr, &debt)
	doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/debts/%d/negotiate", debt.ID), "u1",
		`{"total_installments":10,"installment_amount":"5.00","due_day":5}`)
	doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/debts/%d/pay", debt.ID), "u1", `{"month":"2025-03"}`)

	rr = doJSON(t, srv, http.MethodGet, "/api/months/2025-03/summary", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status=%d body=%s", rr.Code, rr.Body.String())
	}
	var sum summaryResponse
	decodeInto(t, rr, &sum)
	if sum.Month != "2025-03" {
		t.Fatalf("unexpected month: %+v", sum)
	}
	// Budgeted: bill 1500 + installment 500. Spent: ledger payment 500.
	if sum.TotalBudgetedCents != 2000 || sum.TotalSpentCents != 500 {
		t.Fatalf("unexpected totals: %+v", sum)
	}
	if sum.Debts.TotalDebts != 1 || sum.Debts.TotalPaidCents != 500 {
		t.Fatalf("unexpected debt block: %+v", sum)
	}
}

func TestSummaryBadMonth(t *testing.T) {
	srv := newTestServer()
	rr := doJSON(t, srv, http.MethodGet, "/api/months/2025-13/summary", "u1", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad month key, got %d", rr.Code)
	}
}
