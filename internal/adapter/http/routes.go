package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/Studio/internal/domain/user"
	"github.com/Strob0t/Studio/internal/middleware"
)

// WebhookAuth configures signature verification for provider callbacks.
type WebhookAuth struct {
	Secret   func() string
	Header   string
	Required bool
}

// RouteConfig carries what MountRoutes needs beyond the handlers.
type RouteConfig struct {
	Webhook WebhookAuth
	// Protected is applied, in order, to every user-facing route
	// (authentication, tenant resolution, rate limiting, idempotency).
	Protected []func(http.Handler) http.Handler
	// Roles resolves stored roles for admin-only routes. May be nil.
	Roles middleware.RoleLookup
	// WS serves the realtime feed. Mounted only when non-nil.
	WS http.HandlerFunc
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, cfg RouteConfig) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Readiness)

	// Payment provider callbacks (outside user auth, HMAC verified)
	r.With(middleware.WebhookHMAC(cfg.Webhook.Secret, cfg.Webhook.Header, cfg.Webhook.Required)).
		Post("/api/v1/webhooks/payments", h.HandlePaymentWebhook)

	// Public price and quota tables
	r.Get("/api/v1/plans", h.ListPlans)

	r.Group(func(r chi.Router) {
		for _, mw := range cfg.Protected {
			r.Use(mw)
		}

		if cfg.WS != nil {
			r.Get("/ws", cfg.WS)
		}

		r.Route("/api/v1", func(r chi.Router) {
			// Billing
			r.Post("/billing/orders", h.CreateOrder)
			r.Get("/billing/subscriptions", h.ListSubscriptions)
			r.Get("/billing/payments", h.ListPayments)

			// Quota
			r.Post("/quota/participants/check", h.CheckParticipant)

			// Meetings
			r.Get("/meetings", h.ListMeetings)
			r.Post("/meetings", h.CreateMeeting)
			r.Post("/meetings/invites", h.SendInvites)
			r.Get("/meetings/{id}", h.GetMeeting)
			r.Put("/meetings/{id}", h.UpdateMeeting)
			r.Delete("/meetings/{id}", h.DeleteMeeting)
			r.Put("/meetings/{id}/status", h.UpdateMeetingStatus)
			r.Get("/meetings/{id}/calendar.ics", h.MeetingCalendar)
			r.Post("/meetings/{id}/invites", h.InviteMeeting)

			// Notifications
			r.Get("/notifications", h.ListNotifications)
			r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)
			r.Delete("/notifications/{id}", h.DeleteNotification)

			// Tenant
			r.Get("/tenant", h.GetCurrentTenant)
			r.With(middleware.RequireRole(cfg.Roles, user.RoleAdmin)).
				Put("/tenant/plan", h.UpdateTenantPlan)
		})
	})
}
