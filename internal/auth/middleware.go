package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/funddesk/funddesk/internal/platform/httpx"
	"github.com/funddesk/funddesk/internal/shared"
)

// Middleware authenticates requests with a bearer token and stores the
// resolved identity in the request context.
func Middleware(logger *slog.Logger, resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpx.Fail(w, http.StatusUnauthorized, "Authentication required.")
				return
			}

			id, err := resolver.Resolve(r.Context(), token)
			if errors.Is(err, ErrTokenUnknown) {
				httpx.Fail(w, http.StatusUnauthorized, "Invalid or expired token.")
				return
			}
			if err != nil {
				logger.Error("token resolution failed", slog.Any("error", err))
				httpx.Fail(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
				return
			}

			next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// RequireRoles gates a route group to the given roles.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "Authentication required.")
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				httpx.Fail(w, http.StatusForbidden, "You do not have permission to perform this action.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
