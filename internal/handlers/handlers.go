package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"clearing/internal/apperr"
	"clearing/internal/db"
	"clearing/internal/logging"
	"clearing/internal/middleware"
	"clearing/internal/services"
	"clearing/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// respondServiceError maps the error taxonomy onto HTTP. Anything unclassified is logged
// and reported as a 500 without detail.
func respondServiceError(w http.ResponseWriter, r *http.Request, funcName string, err error) {
	if appErr, ok := apperr.From(err); ok {
		respondError(w, statusForKind(appErr.Kind), appErr.Code, appErr.Message)
		return
	}
	var fieldErrors validator.FieldErrors
	if errors.As(err, &fieldErrors) {
		respondError(w, http.StatusBadRequest, "validation_failed", fieldErrors.Error())
		return
	}
	if db.IsUniqueViolation(err) {
		respondError(w, http.StatusConflict, "already_exists", "resource already exists")
		return
	}
	if db.IsNumericOverflow(err) {
		respondError(w, http.StatusBadRequest, "amount_out_of_range", "amount or resulting balance is out of range")
		return
	}
	logging.LogError(r.Context(), "handlers", funcName, nil, err)
	respondError(w, http.StatusInternalServerError, "internal", "internal error")
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a JSON body into dest and runs its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return false
	}
	if err := validator.Struct(dest); err != nil {
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

func scopeFrom(w http.ResponseWriter, r *http.Request) (services.Scope, bool) {
	userID, okUser := middleware.UserIDFromContext(r.Context())
	businessID, okBusiness := middleware.BusinessIDFromContext(r.Context())
	if !okUser || !okBusiness {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return services.Scope{}, false
	}
	return services.Scope{BusinessID: businessID, UserID: userID}, true
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

// idParam reads the {id} route parameter. Ids that are not uuids cannot exist, so they are 404s.
func idParam(w http.ResponseWriter, r *http.Request, code string) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusNotFound, code, strings.ReplaceAll(code, "_", " "))
		return "", false
	}
	return id, true
}
