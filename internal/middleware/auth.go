package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/auth"
	"github.com/yashkumarsingh-dev/ai-developer/backend/pkg/utils"
)

type contextKey string

const claimsKey contextKey = "authClaims"

// RequireAuth verifies the Authorization bearer token and stashes its
// claims in the request context.
func RequireAuth(authSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				token = strings.TrimSpace(after)
			}

			claims, err := authSvc.Verify(token)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

// ClaimsFrom retrieves the verified claims set by RequireAuth.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
