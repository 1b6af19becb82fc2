package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/Studio/internal/domain/user"
)

func newFrozenLimiter(rps float64, burst int) (*RateLimiter, *time.Time) {
	rl := NewRateLimiter(rps, burst)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterBurstThenReject(t *testing.T) {
	rl, _ := newFrozenLimiter(1, 2)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, code := range want {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/meetings", http.NoBody)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != code {
			t.Errorf("request %d: status = %d, want %d", i, rec.Code, code)
		}
		if code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "1" {
			t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
		}
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl, now := newFrozenLimiter(2, 1)

	if _, _, ok := rl.allow("ip:a"); !ok {
		t.Fatal("first request rejected")
	}
	if _, wait, ok := rl.allow("ip:a"); ok || wait <= 0 {
		t.Fatalf("second request: ok=%v wait=%v, want rejection with a wait", ok, wait)
	}
	*now = now.Add(500 * time.Millisecond)
	if _, _, ok := rl.allow("ip:a"); !ok {
		t.Error("expected a token after refill")
	}
}

func TestRateLimiterKeysByTenantUser(t *testing.T) {
	rl, _ := newFrozenLimiter(1, 1)

	principals := []struct {
		tenant string
		user   *user.User
	}{
		{"t1", &user.User{ID: "u1", TenantID: "t1", Role: user.RoleMember}},
		{"t1", &user.User{ID: "u2", TenantID: "t1", Role: user.RoleMember}},
		{"t2", &user.User{ID: "u1", TenantID: "t2", Role: user.RoleMember}},
	}
	for _, p := range principals {
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.RemoteAddr = "10.0.0.1:1234"
		ctx := WithTenant(WithUser(req.Context(), p.user), p.tenant)
		if _, _, ok := rl.allow(limitKey(req.WithContext(ctx))); !ok {
			t.Errorf("%s/%s shares a bucket behind the same address", p.tenant, p.user.ID)
		}
	}
	if rl.Len() != len(principals) {
		t.Errorf("Len = %d, want %d", rl.Len(), len(principals))
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, now := newFrozenLimiter(10, 10)
	rl.allow("ip:1.2.3.4")
	*now = now.Add(time.Hour)
	rl.allow("ip:5.6.7.8")

	rl.cleanup(time.Minute)

	if rl.Len() != 1 {
		t.Errorf("Len = %d, want 1 after cleanup", rl.Len())
	}
}

func TestRateLimiterCapacity(t *testing.T) {
	rl, _ := newFrozenLimiter(10, 10)
	rl.maxKeys = 1
	rl.allow("ip:a")

	if _, _, ok := rl.allow("ip:b"); ok {
		t.Error("expected rejection once the key table is full")
	}
	if _, _, ok := rl.allow("ip:a"); !ok {
		t.Error("known key should still be served")
	}
}

func TestClientIPIgnoresForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "192.168.1.5:443"
	req.Header.Set("X-Forwarded-For", "1.1.1.1")
	if got := clientIP(req); got != "192.168.1.5" {
		t.Errorf("clientIP = %q, want 192.168.1.5", got)
	}
}
