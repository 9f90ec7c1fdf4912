// Command smoke-ledger exercises a running grootboek-api end to end: it
// posts a sales invoice, replays it to prove idempotency, allocates a
// payment against the resulting open item, and checks the trial balance.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

type client struct {
	base string
	http *http.Client
}

func (c *client) do(method, path string, body, dst any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "smoke")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if dst != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w: %s", method, path, err, raw)
		}
	}
	return resp.StatusCode, nil
}

func main() {
	base := os.Getenv("GROOTBOEK_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	tenant := os.Getenv("GROOTBOEK_SMOKE_TENANT")
	if tenant == "" {
		tenant = "demo"
	}
	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	if code, err := c.do(http.MethodGet, "/healthz", nil, nil); err != nil || code != 200 {
		log.Fatalf("healthz: code=%d err=%v", code, err)
	}

	// Resolve the accounts the invoice needs from the tenant chart.
	var chart struct {
		Items []struct {
			ID   string `json:"id"`
			Code string `json:"code"`
		} `json:"items"`
	}
	if code, err := c.do(http.MethodGet, "/v1/tenants/"+tenant+"/accounts", nil, &chart); err != nil || code != 200 {
		log.Fatalf("accounts: code=%d err=%v", code, err)
	}
	byCode := make(map[string]string, len(chart.Items))
	for _, acc := range chart.Items {
		byCode[acc.Code] = acc.ID
	}
	for _, want := range []string{"1300", "8000", "1520"} {
		if byCode[want] == "" {
			log.Fatalf("tenant %s chart is missing account %s", tenant, want)
		}
	}

	sourceID := fmt.Sprintf("smoke-%d", time.Now().UnixNano())
	invoice := map[string]any{
		"tenant_id":   tenant,
		"source_type": "INVOICE",
		"source_id":   sourceID,
		"entry_date":  time.Now().UTC().Format("2006-01-02"),
		"description": "Smoke test invoice",
		"reference":   sourceID,
		"lines": []map[string]any{
			{"account_id": byCode["1300"], "debit": 121000, "party_id": "smoke-cust", "party_name": "Smoke BV"},
			{"account_id": byCode["8000"], "credit": 100000, "vat_code_id": "vat-hoog"},
			{"account_id": byCode["1520"], "credit": 21000},
		},
	}

	var entry struct {
		ID          string `json:"id"`
		EntryNumber string `json:"entry_number"`
	}
	code, err := c.do(http.MethodPost, "/v1/postings", invoice, &entry)
	if err != nil || code != 201 {
		log.Fatalf("post invoice: code=%d err=%v", code, err)
	}

	var replay struct {
		ID string `json:"id"`
	}
	code, err = c.do(http.MethodPost, "/v1/postings", invoice, &replay)
	if err != nil || code != 200 || replay.ID != entry.ID {
		log.Fatalf("replay: code=%d err=%v id=%s want=%s", code, err, replay.ID, entry.ID)
	}

	var items struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if code, err := c.do(http.MethodGet, "/v1/tenants/"+tenant+"/open-items?party_id=smoke-cust", nil, &items); err != nil || code != 200 {
		log.Fatalf("open items: code=%d err=%v", code, err)
	}
	if len(items.Items) == 0 {
		log.Fatal("invoice did not create an open item")
	}
	alloc := map[string]any{"payment_ref": sourceID + "-pay", "amount": 21000}
	var item struct {
		Status     string `json:"status"`
		OpenAmount int64  `json:"open_amount"`
	}
	if code, err := c.do(http.MethodPost, "/v1/tenants/"+tenant+"/open-items/"+items.Items[0].ID+"/allocations", alloc, &item); err != nil || code != 200 {
		log.Fatalf("allocate: code=%d err=%v", code, err)
	}

	var tb struct {
		Rows []struct {
			Debit  int64 `json:"debit"`
			Credit int64 `json:"credit"`
		} `json:"rows"`
	}
	if code, err := c.do(http.MethodGet, "/v1/tenants/"+tenant+"/trial-balance", nil, &tb); err != nil || code != 200 {
		log.Fatalf("trial balance: code=%d err=%v", code, err)
	}
	var debit, credit int64
	for _, row := range tb.Rows {
		debit += row.Debit
		credit += row.Credit
	}
	if debit != credit {
		log.Fatalf("trial balance out of balance: debit=%d credit=%d", debit, credit)
	}

	fmt.Printf("smoke test passed: entry=%s item_status=%s open=%d\n", entry.EntryNumber, item.Status, item.OpenAmount)
}
