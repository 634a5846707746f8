// ABOUTME: Authentication middleware for API requests.
// ABOUTME: Parses Bearer tokens and extracts user identity for request context.

package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userContextKey contextKey = "user"

// Middleware tags every request context with the caller's user id.
// Requests without a token stay anonymous; handlers decide what that means.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := extractUser(r.Header.Get("Authorization"))
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated user id, or "" when anonymous.
func UserFromContext(ctx context.Context) string {
	user, ok := ctx.Value(userContextKey).(string)
	if !ok {
		return ""
	}
	return user
}

// extractUser reads "Bearer user:<id>" tokens. Anything else is treated
// as anonymous; token validation is out of scope for local deployments.
func extractUser(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	token := strings.TrimPrefix(authHeader, "Bearer ")
	token = strings.TrimSpace(token)

	if strings.HasPrefix(token, "user:") {
		return strings.TrimPrefix(token, "user:")
	}
	return ""
}
