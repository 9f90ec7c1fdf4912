// Package httpapi is the thin JSON surface over the ledger service: the
// inbound event contract, read queries, period lifecycle actions, and the
// operational endpoints. Authentication lives in front of this service; the
// handlers only translate headers into an explicit actor.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"grootboek.dev/internal/audit"
	"grootboek.dev/internal/ledger"
	"grootboek.dev/internal/obs"
	"grootboek.dev/internal/openitem"
)

// ReadyProbe reports whether the service can take traffic.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        ledger.Service
	readyProbe ReadyProbe
	version    string
}

func New(svc ledger.Service, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		readyProbe: rp,
		version:    version,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("GET /readyz", a.ready)
	a.mux.HandleFunc("GET /v1/info", a.info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// inbound event contract
	a.mux.HandleFunc("POST /v1/postings", a.postEntry)
	a.mux.HandleFunc("POST /v1/postings/{id}/reverse", a.reverseEntry)
	a.mux.HandleFunc("GET /v1/tenants/{tenant}/postings", a.listEntries)
	a.mux.HandleFunc("GET /v1/tenants/{tenant}/postings/{id}", a.getEntry)

	// chart and reports
	a.mux.HandleFunc("GET /v1/tenants/{tenant}/accounts", a.listAccounts)
	a.mux.HandleFunc("GET /v1/tenants/{tenant}/trial-balance", a.trialBalance)
	a.mux.HandleFunc("GET /v1/tenants/{tenant}/periods/{period}/vat-boxes", a.vatBoxes)

	// open items
	a.mux.HandleFunc("GET /v1/tenants/{tenant}/open-items", a.listOpenItems)
	a.mux.HandleFunc("POST /v1/tenants/{tenant}/open-items/{id}/allocations", a.allocatePayment)
	a.mux.HandleFunc("POST /v1/tenants/{tenant}/open-items/{id}/write-off", a.writeOffItem)

	// period lifecycle
	a.mux.HandleFunc("GET /v1/tenants/{tenant}/periods/{period}/issues", a.periodIssues)
	a.mux.HandleFunc("POST /v1/tenants/{tenant}/periods/{period}/review", a.startReview)
	a.mux.HandleFunc("POST /v1/tenants/{tenant}/periods/{period}/finalize", a.finalizePeriod)
	a.mux.HandleFunc("POST /v1/tenants/{tenant}/periods/{period}/lock", a.lockPeriod)
	a.mux.HandleFunc("POST /v1/tenants/{tenant}/periods/{period}/unlock", a.unlockPeriod)
	a.mux.HandleFunc("GET /v1/tenants/{tenant}/periods/{period}/snapshot", a.getSnapshot)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with request metrics.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.mux)
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "grootboek-api",
		"version": a.version,
	})
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "grootboek-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := a.svc.Accounts(r.Context(), r.PathValue("tenant"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": accounts})
}

// actor builds the request-scoped identity from the headers the gateway in
// front of this service sets.
func (a *API) actor(r *http.Request, tenantID string) audit.Actor {
	return audit.Actor{
		UserID:    r.Header.Get("X-User-Id"),
		TenantID:  tenantID,
		IP:        clientIP(r),
		RequestID: RequestIDFromContext(r.Context()),
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleServiceError maps service rejections onto status codes: validation
// 400, lifecycle conflicts 409 with the blocking issue list, unknown
// resources 404, broken invariants 500 with a loud log.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		payload := map[string]any{
			"error": lerr.Description,
			"code":  lerr.Code,
		}
		if len(lerr.Issues) > 0 {
			payload["issues"] = lerr.Issues
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		switch {
		case errors.Is(err, ledger.ErrValidation):
			writeJSON(w, http.StatusBadRequest, payload)
		case errors.Is(err, ledger.ErrLifecycle):
			writeJSON(w, http.StatusConflict, payload)
		case errors.Is(err, ledger.ErrNotFound):
			writeJSON(w, http.StatusNotFound, payload)
		default:
			obs.LogError("ledger integrity failure", map[string]any{"err": err.Error(), "path": r.URL.Path})
			writeJSON(w, http.StatusInternalServerError, payload)
		}
		return
	}

	switch {
	case errors.Is(err, openitem.ErrInvalidAmount):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, openitem.ErrOverpayment),
		errors.Is(err, openitem.ErrWrittenOff),
		errors.Is(err, openitem.ErrCancelled),
		errors.Is(err, openitem.ErrAlreadySettled):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, openitem.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, openitem.ErrIntegrity):
		obs.LogError("open item integrity failure", map[string]any{"err": err.Error(), "path": r.URL.Path})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	default:
		obs.LogError("unhandled service error", map[string]any{"err": err.Error(), "path": r.URL.Path})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
