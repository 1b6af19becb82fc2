package middleware

import (
	"context"
	"net/http"

	"github.com/Strob0t/Studio/internal/logger"
)

// DefaultTenantID is the single-tenant default used in development when no
// X-Tenant-ID header is set.
const DefaultTenantID = "00000000-0000-0000-0000-000000000000"

const headerTenantID = "X-Tenant-ID"

type tenantCtxKey struct{}

// TenantID is middleware that resolves the request tenant. An authenticated
// user's tenant always wins; a conflicting X-Tenant-ID header is rejected.
// Without a user tenant (auth disabled) the header is trusted, falling back
// to DefaultTenantID.
func TenantID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(headerTenantID)

		var tid string
		if u := UserFromContext(r.Context()); u != nil && u.TenantID != "" {
			if header != "" && header != u.TenantID {
				writeJSONError(w, http.StatusForbidden, "tenant mismatch")
				return
			}
			tid = u.TenantID
		} else {
			tid = header
		}
		if tid == "" {
			tid = DefaultTenantID
		}
		ctx := logger.WithTenantID(WithTenant(r.Context(), tid), tid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithTenant returns ctx scoped to tenantID. Background workers use it to
// run store calls on behalf of a tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenantID)
}

// TenantIDFromContext returns the tenant ID stored in ctx, or "" when no
// tenant was resolved. Callers must treat "" as unauthenticated.
func TenantIDFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(tenantCtxKey{}).(string)
	return tid
}
