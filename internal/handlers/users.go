package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"clearing/internal/auth"
	"clearing/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type createUserRequest struct {
	Username    string   `json:"username" validate:"required,username"`
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,password"`
	Permissions []string `json:"permissions"`
}

// ListUsers returns every member of the caller's business with their grants.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	users, err := h.users.ListByBusiness(r.Context(), scope.BusinessID)
	if err != nil {
		respondServiceError(w, r, "ListUsers", err)
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		permissions, err := h.roles.List(r.Context(), user.ID)
		if err != nil {
			respondServiceError(w, r, "ListUsers", err)
			return
		}
		resp = append(resp, toUserResponse(user, permissions))
	}
	respondJSON(w, http.StatusOK, resp)
}

// CreateUser adds a non-owner member to the caller's business with optional grants.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	for _, permission := range req.Permissions {
		if !models.ValidPermission(permission) {
			respondError(w, http.StatusBadRequest, "invalid_permission", "unknown permission "+permission)
			return
		}
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", "failed to secure password")
		return
	}
	user := models.User{
		ID:           uuid.NewString(),
		BusinessID:   scope.BusinessID,
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: passwordHash,
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.Create(r.Context(), tx, user); err != nil {
			return err
		}
		for _, permission := range req.Permissions {
			if err := h.roles.Grant(r.Context(), tx, user.ID, permission); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]any{
			"username":    user.Username,
			"permissions": req.Permissions,
		})
		return h.audit.Log(r.Context(), tx, scope.BusinessID, scope.UserID, "create_user", "user", user.ID, string(data))
	})
	if err != nil {
		respondServiceError(w, r, "CreateUser", err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserResponse(user, req.Permissions))
}

type grantPermissionRequest struct {
	Permission string `json:"permission" validate:"required"`
}

func (h *Handler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFrom(w, r)
	if !ok {
		return
	}
	var req grantPermissionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !models.ValidPermission(req.Permission) {
		respondError(w, http.StatusBadRequest, "invalid_permission", "unknown permission "+req.Permission)
		return
	}
	targetID, ok := idParam(w, r, "user_not_found")
	if !ok {
		return
	}
	target, err := h.users.GetByID(r.Context(), targetID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		respondServiceError(w, r, "GrantPermission", err)
		return
	}
	if err != nil || target.BusinessID != scope.BusinessID {
		respondError(w, http.StatusNotFound, "user_not_found", "user not found")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.roles.Grant(r.Context(), tx, target.ID, req.Permission); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"permission": req.Permission})
		return h.audit.Log(r.Context(), tx, scope.BusinessID, scope.UserID, "grant_permission", "user", target.ID, string(data))
	})
	if err != nil {
		respondServiceError(w, r, "GrantPermission", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "permission_granted"})
}
