package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grootboek.dev/internal/ledger"
)

type postRequest struct {
	TenantID    string            `json:"tenant_id"`
	SourceType  string            `json:"source_type"`
	SourceID    string            `json:"source_id"`
	EntryDate   string            `json:"entry_date"`
	Description string            `json:"description"`
	Reference   string            `json:"reference"`
	Lines       []postRequestLine `json:"lines"`
}

type postRequestLine struct {
	AccountID   string `json:"account_id"`
	Debit       int64  `json:"debit"`
	Credit      int64  `json:"credit"`
	VatCodeID   string `json:"vat_code_id"`
	Description string `json:"description"`
	PartyID     string `json:"party_id"`
	PartyName   string `json:"party_name"`
}

type reverseRequest struct {
	TenantID    string `json:"tenant_id"`
	EntryDate   string `json:"entry_date"`
	Description string `json:"description"`
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(raw))
}

func (a *API) postEntry(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.TenantID) == "" {
		writeError(w, r, http.StatusBadRequest, "tenant_id is required")
		return
	}
	entryDate, err := parseDate(req.EntryDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "entry_date must be YYYY-MM-DD")
		return
	}

	in := ledger.PostInput{
		TenantID:    req.TenantID,
		SourceType:  ledger.SourceType(strings.ToUpper(strings.TrimSpace(req.SourceType))),
		SourceID:    strings.TrimSpace(req.SourceID),
		EntryDate:   entryDate,
		Description: req.Description,
		Reference:   req.Reference,
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, ledger.LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			VatCodeID:   line.VatCodeID,
			Description: line.Description,
			PartyID:     line.PartyID,
			PartyName:   line.PartyName,
		})
	}

	start := time.Now().UTC()
	entry, err := a.svc.Post(r.Context(), a.actor(r, req.TenantID), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	// A replayed source event comes back with the original posting time; the
	// duplicate is a no-op success, not a new resource.
	code := http.StatusCreated
	if entry.PostedAt != nil && !entry.PostedAt.After(start) {
		code = http.StatusOK
	}
	w.Header().Set("Location", "/v1/tenants/"+entry.TenantID+"/postings/"+entry.ID)
	writeJSON(w, code, entry)
}

func (a *API) reverseEntry(w http.ResponseWriter, r *http.Request) {
	var req reverseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.TenantID) == "" {
		writeError(w, r, http.StatusBadRequest, "tenant_id is required")
		return
	}
	entryDate, err := parseDate(req.EntryDate)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "entry_date must be YYYY-MM-DD")
		return
	}

	entry, err := a.svc.Reverse(r.Context(), a.actor(r, req.TenantID), req.TenantID, r.PathValue("id"), entryDate, req.Description)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) getEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := a.svc.GetEntry(r.Context(), r.PathValue("tenant"), r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *API) listEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.svc.ListEntries(r.Context(), r.PathValue("tenant"), r.URL.Query().Get("after"), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"as_of": time.Now().UTC(),
	})
}

func parseLimit(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 100, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < 1 || val > 1000 {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}
