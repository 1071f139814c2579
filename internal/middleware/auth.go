package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/baharkarakas/txn-aggregator/internal/api/httpx"
	"github.com/baharkarakas/txn-aggregator/internal/auth"
)

type ctxKey string

const ctxClaimsKey ctxKey = "claims"

// Claims returns the verified token claims stored by RequireRole.
func Claims(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(ctxClaimsKey).(*auth.Claims)
	return c, ok
}

// RequireRole demands a valid bearer token whose role is role.
func RequireRole(tm *auth.TokenManager, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := r.Header.Get("Authorization")
			if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
				httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "missing bearer token", nil)
				return
			}
			claims, err := tm.Parse(strings.TrimSpace(ah[7:]))
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "invalid token", nil)
				return
			}
			if claims.Role != role {
				httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "insufficient role", nil)
				return
			}
			ctx := context.WithValue(r.Context(), ctxClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
