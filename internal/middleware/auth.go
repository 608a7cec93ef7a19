package middleware

import (
	"context"
	"net/http"

	"sodaclub-ledger-api/internal/model"
	"sodaclub-ledger-api/internal/service"
	"sodaclub-ledger-api/pkg/apierror"
)

// MemberKey is the key for storing the acting member in request context.
const MemberKey contextKey = "member"

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Auth *service.AuthService
}

// NewAuthMiddleware creates an authentication middleware that resolves
// the X-Token header into the acting member. The member travels in the
// request context; there is no ambient session state anywhere.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Token")
			if token == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use the X-Token header."))
				return
			}

			member, err := cfg.Auth.Resume(r.Context(), token)
			if err != nil {
				writeError(w, apierror.InternalError(""))
				return
			}
			if member == nil {
				writeError(w, apierror.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), MemberKey, member)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose acting member is not an admin.
// Must run after the auth middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		member := GetMemberFromContext(r.Context())
		if member == nil {
			writeError(w, apierror.Unauthorized(""))
			return
		}
		if !member.IsAdmin() {
			writeError(w, apierror.Forbidden("Admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// GetMemberFromContext retrieves the acting member from request context.
func GetMemberFromContext(ctx context.Context) *model.Member {
	if m, ok := ctx.Value(MemberKey).(*model.Member); ok {
		return m
	}
	return nil
}
