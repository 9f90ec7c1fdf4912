package httpapi

import (
	"net/http"
	"strings"
	"time"
)

type finalizeRequest struct {
	AcknowledgedIssues []string `json:"acknowledged_issues"`
}

type lockRequest struct {
	ConfirmIrreversible bool `json:"confirm_irreversible"`
}

type unlockRequest struct {
	Reason string `json:"reason"`
}

func (a *API) periodIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := a.svc.PeriodIssues(r.Context(), r.PathValue("tenant"), r.PathValue("period"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (a *API) startReview(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	per, err := a.svc.StartReview(r.Context(), a.actor(r, tenant), tenant, r.PathValue("period"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, per)
}

func (a *API) finalizePeriod(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	tenant := r.PathValue("tenant")
	per, err := a.svc.Finalize(r.Context(), a.actor(r, tenant), tenant, r.PathValue("period"), req.AcknowledgedIssues)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, per)
}

func (a *API) lockPeriod(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	tenant := r.PathValue("tenant")
	per, err := a.svc.LockPeriod(r.Context(), a.actor(r, tenant), tenant, r.PathValue("period"), req.ConfirmIrreversible)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, per)
}

func (a *API) unlockPeriod(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tenant := r.PathValue("tenant")
	per, err := a.svc.UnlockPeriod(r.Context(), a.actor(r, tenant), tenant, r.PathValue("period"), strings.TrimSpace(req.Reason))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, per)
}

func (a *API) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := a.svc.GetSnapshot(r.Context(), r.PathValue("tenant"), r.PathValue("period"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	rows, err := a.svc.TrialBalance(r.Context(), r.PathValue("tenant"), asOf)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"as_of": asOf.Format("2006-01-02"),
		"rows":  rows,
	})
}

func (a *API) vatBoxes(w http.ResponseWriter, r *http.Request) {
	totals, err := a.svc.VatBoxTotals(r.Context(), r.PathValue("tenant"), r.PathValue("period"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period_id": r.PathValue("period"),
		"boxes":     totals,
	})
}
