package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"clearing/internal/auth"
	"clearing/internal/logging"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	userIDKey     contextKey = "user_id"
	businessIDKey contextKey = "business_id"
)

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok
}

func BusinessIDFromContext(ctx context.Context) (string, bool) {
	businessID, ok := ctx.Value(businessIDKey).(string)
	return businessID, ok
}

// WithIdentity stores the caller on ctx the same way Auth does.
func WithIdentity(ctx context.Context, userID, businessID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, businessIDKey, businessID)
}

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header")
				return
			}
			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			ctx := WithIdentity(r.Context(), claims.UserID, claims.BusinessID)
			recordIdentity(ctx, claims.UserID, claims.BusinessID)
			ctx = logging.WithEntry(ctx, logging.FromContext(ctx).WithFields(logrus.Fields{
				"user_id":     claims.UserID,
				"business_id": claims.BusinessID,
			}))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
