package middleware

import (
	"context"
	"net/http"

	"clearing/internal/logging"
)

type MembershipStore interface {
	Membership(ctx context.Context, userID, businessID string) (bool, bool, error)
	HasPermission(ctx context.Context, userID, permission string) (bool, error)
}

// RequirePermission lets business owners through and everyone else only with the grant.
// An empty permission means owner only.
func RequirePermission(memberships MembershipStore, permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, okUser := UserIDFromContext(r.Context())
			businessID, okBusiness := BusinessIDFromContext(r.Context())
			if !okUser || !okBusiness {
				writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			isMember, isOwner, err := memberships.Membership(r.Context(), userID, businessID)
			if err != nil {
				logging.LogError(r.Context(), "middleware", "RequirePermission", nil, err)
				writeError(w, http.StatusInternalServerError, "internal", "unable to verify permissions")
				return
			}
			if !isMember {
				writeError(w, http.StatusForbidden, "forbidden", "not a member of this business")
				return
			}
			if isOwner {
				next.ServeHTTP(w, r)
				return
			}
			if permission == "" {
				writeError(w, http.StatusForbidden, "forbidden", "owner privileges required")
				return
			}
			granted, err := memberships.HasPermission(r.Context(), userID, permission)
			if err != nil {
				logging.LogError(r.Context(), "middleware", "RequirePermission", map[string]string{"permission": permission}, err)
				writeError(w, http.StatusInternalServerError, "internal", "unable to verify permissions")
				return
			}
			if !granted {
				writeError(w, http.StatusForbidden, "forbidden", "missing permission "+permission)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
