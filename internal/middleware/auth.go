package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Strob0t/Studio/internal/domain/user"
)

type authUserCtxKey struct{}

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (*user.User, error)
}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
	"/api/v1/plans": true,
}

// devUser is injected when auth is disabled. Its empty tenant lets the
// TenantID middleware fall back to the X-Tenant-ID header.
var devUser = user.User{
	ID:    "00000000-0000-0000-0000-000000000000",
	Email: "admin@localhost",
	Name:  "Admin",
	Role:  user.RoleAdmin,
}

// Auth returns middleware that validates bearer tokens issued by the
// identity backend. When authEnabled is false, a default admin context is
// injected.
func Auth(verifier TokenVerifier, authEnabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authEnabled {
				u := devUser
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &u)))
				return
			}

			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			// Browsers cannot set headers on websocket upgrades.
			var token string
			if r.URL.Path == "/ws" {
				token = r.URL.Query().Get("token")
			} else {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					writeJSONError(w, http.StatusUnauthorized, "authorization required")
					return
				}
				token = strings.TrimPrefix(authHeader, "Bearer ")
				if token == authHeader {
					writeJSONError(w, http.StatusUnauthorized, "invalid authorization header")
					return
				}
			}
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			u, err := verifier.Verify(token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// WithUser stores the principal in ctx.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, authUserCtxKey{}, u)
}

// UserFromContext returns the authenticated user from the request context.
func UserFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(authUserCtxKey{}).(*user.User)
	return u
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
