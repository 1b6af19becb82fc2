package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/Studio/internal/service"
)

const defaultMaxRequestBodySize = 1 << 20 // 1 MB

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerLimits bounds request handling.
type HandlerLimits struct {
	MaxRequestBodySize int64
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Orders        *service.OrderService
	Webhooks      *service.WebhookService
	Quota         *service.QuotaService
	Meetings      *service.MeetingService
	Invites       *service.InviteService
	Notifications *service.NotificationService
	Tenants       *service.TenantService
	Limits        HandlerLimits

	// EventIDHeader names the header carrying the provider's event id.
	EventIDHeader string
	// Ready lists dependencies checked by /health/ready, keyed by name.
	Ready map[string]Pinger
}

func (h *Handlers) bodyLimit() int64 {
	if h.Limits.MaxRequestBodySize > 0 {
		return h.Limits.MaxRequestBodySize
	}
	return defaultMaxRequestBodySize
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness handles GET /health/ready
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.Ready))
	status := http.StatusOK
	for name, p := range h.Ready {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}
