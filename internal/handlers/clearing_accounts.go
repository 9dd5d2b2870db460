package handlers

import (
	"net/http"
	"strings"

	"clearing/internal/services"
)

type createAccountRequest struct {
	Code          string  `json:"code" validate:"required,max=50"`
	Name          string  `json:"name" validate:"required,max=200"`
	NameEn        *string `json:"name_en" validate:"omitempty,max=200"`
	Type          string  `json:"type" validate:"required,account_type"`
	AccountID     *string `json:"account_id" validate:"omitempty,uuid"`
	SystemAccount *string `json:"system_account" validate:"omitempty,max=100"`
}

type updateAccountRequest struct {
	Code      *string `json:"code" validate:"omitempty,min=1,max=50"`
	Name      *string `json:"name" validate:"omitempty,min=1,max=200"`
	NameEn    *string `json:"name_en" validate:"omitempty,max=200"`
	Type      *string `json:"type" validate:"omitempty,account_type"`
	AccountID *string `json:"account_id" validate:"omitempty,uuid"`
	IsActive  *bool   `json:"is_active"`
}

func (h *Handler) ListClearingAccounts(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	includeInactive := strings.EqualFold(r.URL.Query().Get("include_inactive"), "true")
	accounts, err := h.service.ListAccounts(r.Context(), scope, includeInactive)
	if err != nil {
		respondServiceError(w, r, "ListClearingAccounts", err)
		return
	}
	respondJSON(w, http.StatusOK, toAccountResponses(accounts))
}

func (h *Handler) CreateClearingAccount(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	var req createAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := h.service.CreateAccount(r.Context(), scope, services.CreateAccountInput{
		Code:          req.Code,
		Name:          req.Name,
		NameEn:        req.NameEn,
		Type:          req.Type,
		AccountID:     req.AccountID,
		SystemAccount: req.SystemAccount,
	})
	if err != nil {
		respondServiceError(w, r, "CreateClearingAccount", err)
		return
	}
	respondJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *Handler) GetClearingAccount(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	accountID, ok := idParam(w, r, "account_not_found")
	if !ok {
		return
	}
	account, err := h.service.GetAccount(r.Context(), scope, accountID)
	if err != nil {
		respondServiceError(w, r, "GetClearingAccount", err)
		return
	}
	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) UpdateClearingAccount(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	accountID, ok := idParam(w, r, "account_not_found")
	if !ok {
		return
	}
	var req updateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := h.service.UpdateAccount(r.Context(), scope, accountID, services.UpdateAccountInput{
		Code:      req.Code,
		Name:      req.Name,
		NameEn:    req.NameEn,
		Type:      req.Type,
		AccountID: req.AccountID,
		IsActive:  req.IsActive,
	})
	if err != nil {
		respondServiceError(w, r, "UpdateClearingAccount", err)
		return
	}
	respondJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) GetClearingAccountBalance(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	accountID, ok := idParam(w, r, "account_not_found")
	if !ok {
		return
	}
	balance, err := h.service.GetAccountBalance(r.Context(), scope, accountID)
	if err != nil {
		respondServiceError(w, r, "GetClearingAccountBalance", err)
		return
	}
	respondJSON(w, http.StatusOK, toBalanceResponse(balance))
}

func (h *Handler) SeedClearingAccounts(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	result, err := h.service.SeedClearingAccounts(r.Context(), scope)
	if err != nil {
		respondServiceError(w, r, "SeedClearingAccounts", err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
