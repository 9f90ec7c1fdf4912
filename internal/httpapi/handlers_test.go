package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/chart"
	"grootboek.dev/internal/ledger"
	"grootboek.dev/internal/period"
	"grootboek.dev/internal/vat"
)

func newTestAPI(t *testing.T) (*API, *chart.Chart) {
	t.Helper()
	ch, err := chart.NewDefault("t1")
	if err != nil {
		t.Fatal(err)
	}
	svc := ledger.NewInMemory(vat.MustDefaultTable(), audit.LogSink{})
	svc.RegisterTenant(ch, period.Quarter("t1", 2026, 1))
	return New(svc, ReadyProbe{}, "test"), ch
}

func mustCode(t *testing.T, ch *chart.Chart, code string) string {
	t.Helper()
	acc, err := ch.ByCode(code)
	if err != nil {
		t.Fatalf("account %s: %v", code, err)
	}
	return acc.ID
}

func invoiceBody(t *testing.T, ch *chart.Chart, sourceID string) []byte {
	t.Helper()
	body := map[string]any{
		"tenant_id":   "t1",
		"source_type": "INVOICE",
		"source_id":   sourceID,
		"entry_date":  "2026-02-14",
		"description": "Factuur 2026-031",
		"reference":   "2026-031",
		"lines": []map[string]any{
			{"account_id": mustCode(t, ch, "1300"), "debit": 121000, "party_id": "cust-1", "party_name": "Jansen BV"},
			{"account_id": mustCode(t, ch, "8000"), "credit": 100000, "vat_code_id": "vat-hoog"},
			{"account_id": mustCode(t, ch, "1520"), "credit": 21000},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func doJSON(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
}

func TestPostEntryAndIdempotentReplay(t *testing.T) {
	api, ch := newTestAPI(t)
	h := api.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/postings", invoiceBody(t, ch, "inv-1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first post status = %d, body %s", rec.Code, rec.Body.String())
	}
	var first ledger.JournalEntry
	decodeBody(t, rec, &first)
	if first.EntryNumber != "JE-000001" || !first.IsBalanced {
		t.Fatalf("unexpected entry: %+v", first)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/tenants/t1/postings/"+first.ID {
		t.Fatalf("unexpected Location: %s", loc)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/postings", invoiceBody(t, ch, "inv-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", rec.Code)
	}
	var second ledger.JournalEntry
	decodeBody(t, rec, &second)
	if second.ID != first.ID {
		t.Fatal("replay must return the original entry")
	}
}

func TestPostEntryValidationError(t *testing.T) {
	api, ch := newTestAPI(t)
	h := api.Handler()

	body := invoiceBody(t, ch, "inv-1")
	body = bytes.Replace(body, []byte(`"credit":21000`), []byte(`"credit":20999`), 1)

	rec := doJSON(t, h, http.MethodPost, "/v1/postings", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Code string `json:"code"`
	}
	decodeBody(t, rec, &payload)
	if payload.Code != ledger.ReasonUnbalanced {
		t.Fatalf("code = %s, want %s", payload.Code, ledger.ReasonUnbalanced)
	}
}

func TestPostEntryBadDate(t *testing.T) {
	api, ch := newTestAPI(t)
	body := invoiceBody(t, ch, "inv-1")
	body = bytes.Replace(body, []byte("2026-02-14"), []byte("14-02-2026"), 1)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/v1/postings", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPeriodGuardReturnsConflict(t *testing.T) {
	api, ch := newTestAPI(t)
	h := api.Handler()

	if rec := doJSON(t, h, http.MethodPost, "/v1/postings", invoiceBody(t, ch, "inv-1")); rec.Code != http.StatusCreated {
		t.Fatalf("post: %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodPost, "/v1/tenants/t1/periods/2026-Q1/review", nil); rec.Code != http.StatusOK {
		t.Fatalf("review: %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodPost, "/v1/tenants/t1/periods/2026-Q1/finalize", nil); rec.Code != http.StatusOK {
		t.Fatalf("finalize: %d %s", rec.Code, rec.Body.String())
	}

	rec := doJSON(t, h, http.MethodPost, "/v1/postings", invoiceBody(t, ch, "inv-2"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Code string `json:"code"`
	}
	decodeBody(t, rec, &payload)
	if payload.Code != ledger.ReasonPeriodClosed {
		t.Fatalf("code = %s, want %s", payload.Code, ledger.ReasonPeriodClosed)
	}
}

func TestFinalizeConflictCarriesIssues(t *testing.T) {
	api, ch := newTestAPI(t)
	h := api.Handler()

	body := invoiceBody(t, ch, "inv-1")
	body = bytes.Replace(body, []byte(`"reference":"2026-031"`), []byte(`"reference":""`), 1)
	if rec := doJSON(t, h, http.MethodPost, "/v1/postings", body); rec.Code != http.StatusCreated {
		t.Fatalf("post: %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodPost, "/v1/tenants/t1/periods/2026-Q1/review", nil); rec.Code != http.StatusOK {
		t.Fatalf("review: %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/v1/tenants/t1/periods/2026-Q1/finalize", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var payload struct {
		Code   string `json:"code"`
		Issues []struct {
			Code     string `json:"code"`
			Severity string `json:"severity"`
		} `json:"issues"`
	}
	decodeBody(t, rec, &payload)
	if payload.Code != ledger.ReasonBlockingIssues || len(payload.Issues) == 0 {
		t.Fatalf("expected blocking issues payload, got %s", rec.Body.String())
	}

	// Acknowledging the hygiene finding clears the gate.
	ack, _ := json.Marshal(map[string]any{"acknowledged_issues": []string{payload.Issues[0].Code}})
	if rec := doJSON(t, h, http.MethodPost, "/v1/tenants/t1/periods/2026-Q1/finalize", ack); rec.Code != http.StatusOK {
		t.Fatalf("finalize with ack: %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodGet, "/v1/tenants/t1/periods/2026-Q1/snapshot", nil); rec.Code != http.StatusOK {
		t.Fatalf("snapshot: %d", rec.Code)
	}
}

func TestOpenItemAllocationFlow(t *testing.T) {
	api, ch := newTestAPI(t)
	h := api.Handler()

	if rec := doJSON(t, h, http.MethodPost, "/v1/postings", invoiceBody(t, ch, "inv-1")); rec.Code != http.StatusCreated {
		t.Fatalf("post: %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/tenants/t1/open-items?party_id=cust-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("open items: %d", rec.Code)
	}
	var listed struct {
		Items []struct {
			ID         string `json:"id"`
			OpenAmount int64  `json:"open_amount"`
			Status     string `json:"status"`
		} `json:"items"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Items) != 1 || listed.Items[0].OpenAmount != 121000 {
		t.Fatalf("unexpected open items: %s", rec.Body.String())
	}

	alloc, _ := json.Marshal(map[string]any{"payment_ref": "bank-77", "amount": 21000})
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/tenants/t1/open-items/%s/allocations", listed.Items[0].ID), alloc)
	if rec.Code != http.StatusOK {
		t.Fatalf("allocate: %d %s", rec.Code, rec.Body.String())
	}
	var item struct {
		Status     string `json:"status"`
		OpenAmount int64  `json:"open_amount"`
	}
	decodeBody(t, rec, &item)
	if item.Status != "PARTIAL" || item.OpenAmount != 100000 {
		t.Fatalf("unexpected item after allocation: %+v", item)
	}

	// Overpaying without the explicit flag is a conflict.
	over, _ := json.Marshal(map[string]any{"payment_ref": "bank-78", "amount": 200000})
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/tenants/t1/open-items/%s/allocations", listed.Items[0].ID), over)
	if rec.Code != http.StatusConflict {
		t.Fatalf("overpayment status = %d, want 409", rec.Code)
	}
}

func TestTrialBalanceEndpoint(t *testing.T) {
	api, ch := newTestAPI(t)
	h := api.Handler()

	if rec := doJSON(t, h, http.MethodPost, "/v1/postings", invoiceBody(t, ch, "inv-1")); rec.Code != http.StatusCreated {
		t.Fatalf("post: %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodGet, "/v1/tenants/t1/trial-balance?as_of=2026-03-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trial balance: %d", rec.Code)
	}
	var payload struct {
		Rows []struct {
			Debit  int64 `json:"debit"`
			Credit int64 `json:"credit"`
		} `json:"rows"`
	}
	decodeBody(t, rec, &payload)
	var debit, credit int64
	for _, row := range payload.Rows {
		debit += row.Debit
		credit += row.Credit
	}
	if debit != credit || debit == 0 {
		t.Fatalf("trial balance out of balance: %d/%d", debit, credit)
	}
}

func TestVatBoxesEndpoint(t *testing.T) {
	api, ch := newTestAPI(t)
	h := api.Handler()

	if rec := doJSON(t, h, http.MethodPost, "/v1/postings", invoiceBody(t, ch, "inv-1")); rec.Code != http.StatusCreated {
		t.Fatalf("post: %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodGet, "/v1/tenants/t1/periods/2026-Q1/vat-boxes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("vat boxes: %d", rec.Code)
	}
	var payload struct {
		Boxes []struct {
			Box string `json:"box_code"`
			Net int64  `json:"net_amount"`
			Vat int64  `json:"vat_amount"`
		} `json:"boxes"`
	}
	decodeBody(t, rec, &payload)
	if len(payload.Boxes) != 1 || payload.Boxes[0].Box != "1a" || payload.Boxes[0].Vat != 21000 {
		t.Fatalf("unexpected boxes: %s", rec.Body.String())
	}
}

func TestHealthAndInfo(t *testing.T) {
	api, _ := newTestAPI(t)
	h := api.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rec := doJSON(t, h, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/nothing-here", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: %d, want 404", rec.Code)
	}
}

func TestUnknownTenantIs404(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api.Handler(), http.MethodGet, "/v1/tenants/nope/open-items", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
