package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/middleware"
)

func TestTenantIDFromHeader(t *testing.T) {
	var got, logged string
	handler := middleware.TenantID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = middleware.TenantIDFromContext(r.Context())
		logged = logger.TenantID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("X-Tenant-ID", "tenant-abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "tenant-abc" {
		t.Fatalf("expected tenant-abc, got %s", got)
	}
	if logged != "tenant-abc" {
		t.Errorf("expected log tenant tenant-abc, got %s", logged)
	}
}

func TestTenantIDDefaultFallback(t *testing.T) {
	var got string
	handler := middleware.TenantID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = middleware.TenantIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", http.NoBody)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != middleware.DefaultTenantID {
		t.Fatalf("expected default tenant, got %s", got)
	}
}

func TestTenantIDFromUserClaims(t *testing.T) {
	var got string
	handler := middleware.TenantID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = middleware.TenantIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req = req.WithContext(middleware.WithUser(req.Context(), testUser()))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "tenant-1" {
		t.Fatalf("expected tenant-1 from claims, got %s", got)
	}
}

func TestTenantIDHeaderMismatchForbidden(t *testing.T) {
	called := false
	handler := middleware.TenantID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.Header.Set("X-Tenant-ID", "tenant-other")
	req = req.WithContext(middleware.WithUser(req.Context(), testUser()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if called {
		t.Error("handler must not run on tenant mismatch")
	}
}

func TestTenantIDFromContextMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", http.NoBody)
	if got := middleware.TenantIDFromContext(req.Context()); got != "" {
		t.Fatalf("expected no tenant outside the middleware, got %q", got)
	}
}
