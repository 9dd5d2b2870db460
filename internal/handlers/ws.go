package handlers

import (
	"net/http"
	"strings"

	"clearing/internal/auth"
)

// WSBalances upgrades to a websocket that receives balance updates for the caller's business.
// Browsers cannot set headers on the upgrade, so the token may come as ?token=.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
		return
	}
	isMember, _, err := h.roles.Membership(r.Context(), claims.UserID, claims.BusinessID)
	if err != nil {
		respondServiceError(w, r, "WSBalances", err)
		return
	}
	if !isMember {
		respondError(w, http.StatusForbidden, "forbidden", "not a member of this business")
		return
	}
	h.hub.ServeWS(w, r, claims.BusinessID)
}
