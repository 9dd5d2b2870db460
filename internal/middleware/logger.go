package middleware

import (
	"context"
	"net/http"
	"time"

	"clearing/internal/logging"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const identityKey contextKey = "request_identity"

type requestIdentity struct {
	userID     string
	businessID string
}

// recordIdentity lets Auth, which runs deeper in the chain, report the caller to RequestLogger.
func recordIdentity(ctx context.Context, userID, businessID string) {
	if identity, ok := ctx.Value(identityKey).(*requestIdentity); ok {
		identity.userID = userID
		identity.businessID = businessID
	}
}

// RequestLogger logs one line per request and puts a request-scoped entry on the context.
// It expects chi's RequestID middleware to run first.
func RequestLogger(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(logrus.Fields{
				"request_id": chimiddleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			identity := &requestIdentity{}
			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = logging.WithEntry(ctx, entry)
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := logrus.Fields{
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if identity.userID != "" {
				fields["user_id"] = identity.userID
				fields["business_id"] = identity.businessID
			}
			line := entry.WithFields(fields)
			switch {
			case status >= http.StatusInternalServerError:
				line.Error("request failed")
			case status >= http.StatusBadRequest:
				line.Warn("request rejected")
			default:
				line.Info("request completed")
			}
		})
	}
}
