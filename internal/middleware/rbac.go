package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Strob0t/Studio/internal/domain/user"
)

// RoleLookup resolves a role stored per tenant (user_roles). The tenant is
// taken from ctx.
type RoleLookup interface {
	GetUserRole(ctx context.Context, userID string) (user.Role, error)
}

// RequireRole restricts access to users with one of the given roles. The
// token role is checked first; when it is not sufficient and lookup is
// non-nil, the stored role is consulted.
func RequireRole(lookup RoleLookup, roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				writeJSONError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			if allowed[u.Role] {
				next.ServeHTTP(w, r)
				return
			}

			if lookup != nil {
				role, err := lookup.GetUserRole(r.Context(), u.ID)
				if err == nil && allowed[role] {
					next.ServeHTTP(w, r)
					return
				}
				if err != nil {
					slog.Debug("role lookup failed", "user_id", u.ID, "error", err)
				}
			}

			writeJSONError(w, http.StatusForbidden, "forbidden")
		})
	}
}
