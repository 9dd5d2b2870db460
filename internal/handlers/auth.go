package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"clearing/internal/auth"
	"clearing/internal/db"
	"clearing/internal/logging"
	"clearing/internal/middleware"
	"clearing/internal/models"
	"clearing/internal/services"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type registerRequest struct {
	BusinessName string `json:"business_name" validate:"required,max=200"`
	Username     string `json:"username" validate:"required,username"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,password"`
}

// Register opens a new business with its owner, the ledger accounts the clearing catalog
// links to, and then the catalog itself.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", "failed to secure password")
		return
	}
	businessID := uuid.NewString()
	userID := uuid.NewString()
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.businesses.Create(r.Context(), tx, businessID, strings.TrimSpace(req.BusinessName)); err != nil {
			return err
		}
		if err := h.users.Create(r.Context(), tx, models.User{
			ID:           userID,
			BusinessID:   businessID,
			Username:     req.Username,
			Email:        strings.ToLower(req.Email),
			PasswordHash: passwordHash,
			IsOwner:      true,
		}); err != nil {
			return err
		}
		for _, tag := range services.CatalogSystemAccounts() {
			if err := h.ledger.Create(r.Context(), tx, models.LedgerAccount{
				ID:            uuid.NewString(),
				BusinessID:    businessID,
				Code:          ledgerCode(tag),
				Name:          ledgerName(tag),
				SystemAccount: &tag,
			}); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]string{
			"user_id":    userID,
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
		return h.audit.Log(r.Context(), tx, businessID, userID, "register", "business", businessID, string(data))
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "already_exists", "username or email already exists")
			return
		}
		logging.LogError(r.Context(), "handlers", "Register", nil, err)
		respondError(w, http.StatusInternalServerError, "internal", "registration failed")
		return
	}

	scope := services.Scope{BusinessID: businessID, UserID: userID}
	if result, err := h.service.SeedClearingAccounts(r.Context(), scope); err != nil {
		logging.LogError(r.Context(), "handlers", "Register", map[string]string{"business_id": businessID}, err)
	} else {
		logging.FromContext(r.Context()).WithFields(logrus.Fields{
			"business_id": businessID,
			"created":     result.Created,
		}).Info("clearing accounts seeded")
	}

	token, err := auth.GenerateToken(h.cfg.JWTSecret, userID, businessID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", "failed to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"token":       token,
		"business_id": businessID,
		"user_id":     userID,
	})
}

func ledgerCode(tag string) string {
	return "GL-" + strings.ToUpper(strings.ReplaceAll(tag, "_", "-"))
}

func ledgerName(tag string) string {
	name := strings.ReplaceAll(tag, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := h.users.GetByEmail(r.Context(), strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		logging.LogError(r.Context(), "handlers", "Login", nil, err)
		respondError(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		data, _ := json.Marshal(map[string]string{
			"user_id":    user.ID,
			"ip":         r.RemoteAddr,
			"user_agent": r.UserAgent(),
		})
		return h.audit.Log(r.Context(), tx, user.BusinessID, user.ID, "login", "user", user.ID, string(data))
	}); err != nil {
		logging.LogError(r.Context(), "handlers", "Login", nil, err)
		respondError(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, user.BusinessID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal", "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user_not_found", "user not found")
			return
		}
		respondServiceError(w, r, "Me", err)
		return
	}
	permissions, err := h.roles.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, "Me", err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user, permissions))
}
