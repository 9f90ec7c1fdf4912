package httpapi

import (
	"net/http"
	"strings"

	"grootboek.dev/internal/openitem"
)

type allocationRequest struct {
	PaymentRef  string `json:"payment_ref"`
	Amount      int64  `json:"amount"`
	Overpayment bool   `json:"overpayment"`
}

func (a *API) listOpenItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.svc.OpenItems(r.Context(), r.PathValue("tenant"), r.URL.Query().Get("party_id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) allocatePayment(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.PaymentRef) == "" {
		writeError(w, r, http.StatusBadRequest, "payment_ref is required")
		return
	}

	tenant := r.PathValue("tenant")
	item, err := a.svc.AllocatePayment(r.Context(), a.actor(r, tenant), tenant, r.PathValue("id"), openitem.Allocation{
		PaymentRef:  req.PaymentRef,
		Amount:      req.Amount,
		Overpayment: req.Overpayment,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) writeOffItem(w http.ResponseWriter, r *http.Request) {
	tenant := r.PathValue("tenant")
	item, err := a.svc.WriteOffItem(r.Context(), a.actor(r, tenant), tenant, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
