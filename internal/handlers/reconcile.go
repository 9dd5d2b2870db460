package handlers

import (
	"net/http"
	"strings"

	"clearing/internal/services"

	"github.com/google/uuid"
)

type reconcileRequest struct {
	DebitEntryIDs  []string `json:"debit_entry_ids" validate:"dive,uuid"`
	CreditEntryIDs []string `json:"credit_entry_ids" validate:"dive,uuid"`
	Notes          *string  `json:"notes" validate:"omitempty,max=1000"`
}

// ListUnreconciled accepts repeated or comma separated account_id values.
func (h *Handler) ListUnreconciled(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	var accountIDs []string
	for _, raw := range r.URL.Query()["account_id"] {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, err := uuid.Parse(id); err != nil {
				respondError(w, http.StatusBadRequest, "invalid_account_id", "account_id must be a uuid")
				return
			}
			accountIDs = append(accountIDs, id)
		}
	}
	baskets, err := h.service.GetUnreconciledEntries(r.Context(), scope, accountIDs)
	if err != nil {
		respondServiceError(w, r, "ListUnreconciled", err)
		return
	}
	respondJSON(w, http.StatusOK, toBasketResponses(baskets))
}

func (h *Handler) ReconcileBasket(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	var req reconcileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.service.ReconcileBasket(r.Context(), scope, services.ReconcileRequest{
		DebitEntryIDs:  req.DebitEntryIDs,
		CreditEntryIDs: req.CreditEntryIDs,
		Notes:          req.Notes,
	})
	if err != nil {
		respondServiceError(w, r, "ReconcileBasket", err)
		return
	}
	respondJSON(w, http.StatusCreated, toReconcileResponse(result))
}

func (h *Handler) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	recs, err := h.service.ListReconciliations(r.Context(), scope, parseInt(query.Get("page"), 1), parseInt(query.Get("limit"), 0))
	if err != nil {
		respondServiceError(w, r, "ListReconciliations", err)
		return
	}
	out := make([]reconciliationResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toReconciliationResponse(rec))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	reconciliationID, ok := idParam(w, r, "reconciliation_not_found")
	if !ok {
		return
	}
	detail, err := h.service.GetReconciliation(r.Context(), scope, reconciliationID)
	if err != nil {
		respondServiceError(w, r, "GetReconciliation", err)
		return
	}
	respondJSON(w, http.StatusOK, toReconciliationDetailResponse(detail))
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	stats, err := h.service.GetStatistics(r.Context(), scope)
	if err != nil {
		respondServiceError(w, r, "GetStatistics", err)
		return
	}
	respondJSON(w, http.StatusOK, toStatisticsResponse(stats))
}
