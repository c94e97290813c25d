package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rollt/rollt-server/internal/http/response"
	"github.com/rollt/rollt-server/internal/observability"
	"github.com/rollt/rollt-server/internal/security"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// AuthMiddleware is the bearer gate: a missing or malformed Authorization
// header is 401, a token that fails verification is 403. It never touches
// the database; the claims carry everything downstream handlers need.
func AuthMiddleware(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				observability.RecordAccessTokenValidation(r.Context(), "missing")
				response.Error(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				observability.RecordAccessTokenValidation(r.Context(), "malformed")
				response.Error(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			raw := strings.TrimSpace(auth[7:])
			claims, err := jwtMgr.Parse(raw)
			if err != nil {
				observability.RecordAccessTokenValidation(r.Context(), "invalid")
				response.Error(w, http.StatusForbidden, "Invalid or expired token")
				return
			}
			observability.RecordAccessTokenValidation(r.Context(), "valid")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}
