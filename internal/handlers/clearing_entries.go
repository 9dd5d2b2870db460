package handlers

import (
	"net/http"
	"strings"
	"time"

	"clearing/internal/money"
	"clearing/internal/services"

	"github.com/google/uuid"
)

type createEntryRequest struct {
	ClearingAccountID string  `json:"clearing_account_id" validate:"required,uuid"`
	EntryDate         string  `json:"entry_date" validate:"required"`
	Amount            string  `json:"amount" validate:"required"`
	ReferenceType     *string `json:"reference_type" validate:"omitempty,max=50"`
	ReferenceID       *string `json:"reference_id" validate:"omitempty,max=100"`
	ReferenceNumber   *string `json:"reference_number" validate:"omitempty,max=100"`
	Description       *string `json:"description" validate:"omitempty,max=500"`
}

type updateEntryRequest struct {
	EntryDate       *string `json:"entry_date"`
	Amount          *string `json:"amount"`
	ReferenceType   *string `json:"reference_type" validate:"omitempty,max=50"`
	ReferenceID     *string `json:"reference_id" validate:"omitempty,max=100"`
	ReferenceNumber *string `json:"reference_number" validate:"omitempty,max=100"`
	Description     *string `json:"description" validate:"omitempty,max=500"`
}

type entryPageResponse struct {
	Items []entryResponse `json:"items"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (h *Handler) ListClearingEntries(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	if accountID := query.Get("account_id"); accountID != "" {
		if _, err := uuid.Parse(accountID); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_account_id", "account_id must be a uuid")
			return
		}
	}
	filter := services.EntryFilter{
		AccountID: query.Get("account_id"),
		Status:    query.Get("status"),
		Page:      parseInt(query.Get("page"), 1),
		Limit:     parseInt(query.Get("limit"), 0),
	}
	for key, target := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_date", key+" must be YYYY-MM-DD")
			return
		}
		*target = &parsed
	}
	page, err := h.service.FindAllEntries(r.Context(), scope, filter)
	if err != nil {
		respondServiceError(w, r, "ListClearingEntries", err)
		return
	}
	respondJSON(w, http.StatusOK, entryPageResponse{
		Items: toEntryResponses(page.Items),
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
	})
}

func (h *Handler) CreateClearingEntry(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	var req createEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entryDate, err := time.Parse(dateLayout, req.EntryDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_date", "entry_date must be YYYY-MM-DD")
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), scope, services.CreateEntryInput{
		ClearingAccountID: req.ClearingAccountID,
		EntryDate:         entryDate,
		Amount:            amount,
		ReferenceType:     req.ReferenceType,
		ReferenceID:       req.ReferenceID,
		ReferenceNumber:   req.ReferenceNumber,
		Description:       req.Description,
	})
	if err != nil {
		respondServiceError(w, r, "CreateClearingEntry", err)
		return
	}
	respondJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) GetClearingEntry(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	entryID, ok := idParam(w, r, "entry_not_found")
	if !ok {
		return
	}
	entry, err := h.service.FindEntryByID(r.Context(), scope, entryID)
	if err != nil {
		respondServiceError(w, r, "GetClearingEntry", err)
		return
	}
	respondJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) UpdateClearingEntry(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	entryID, ok := idParam(w, r, "entry_not_found")
	if !ok {
		return
	}
	var req updateEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	patch := services.UpdateEntryInput{
		ReferenceType:   req.ReferenceType,
		ReferenceID:     req.ReferenceID,
		ReferenceNumber: req.ReferenceNumber,
		Description:     req.Description,
	}
	if req.EntryDate != nil {
		entryDate, err := time.Parse(dateLayout, strings.TrimSpace(*req.EntryDate))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_date", "entry_date must be YYYY-MM-DD")
			return
		}
		patch.EntryDate = &entryDate
	}
	if req.Amount != nil {
		amount, err := money.Parse(*req.Amount)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_amount", err.Error())
			return
		}
		patch.Amount = &amount
	}
	entry, err := h.service.UpdateEntry(r.Context(), scope, entryID, patch)
	if err != nil {
		respondServiceError(w, r, "UpdateClearingEntry", err)
		return
	}
	respondJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) DeleteClearingEntry(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	entryID, ok := idParam(w, r, "entry_not_found")
	if !ok {
		return
	}
	if err := h.service.DeleteEntry(r.Context(), scope, entryID); err != nil {
		respondServiceError(w, r, "DeleteClearingEntry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

