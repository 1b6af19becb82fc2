package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/service"
)

// ListPlans handles GET /api/v1/plans
func (h *Handlers) ListPlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, plan.Catalog(h.Quota.Quota()))
}

// CreateOrder handles POST /api/v1/billing/orders
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.OrderRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if !requireField(w, req.Plan, "plan") {
		return
	}
	resp, err := h.Orders.CreateOrder(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSubscriptions handles GET /api/v1/billing/subscriptions
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	listOf(h.Orders.ListSubscriptions, "subscriptions not found")(w, r)
}

// ListPayments handles GET /api/v1/billing/payments
func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	listOf(h.Orders.ListPayments, "payments not found")(w, r)
}

// HandlePaymentWebhook handles POST /api/v1/webhooks/payments.
// The signature has already been verified by middleware.WebhookHMAC.
func (h *Handlers) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.bodyLimit()))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	outcome, err := h.Webhooks.HandlePaymentEvent(r.Context(), body, r.Header.Get(h.EventIDHeader))
	if err != nil {
		logger.With(r.Context()).Warn("payment webhook not processed", slog.Any("error", err))
		writeDomainError(w, err, "subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": outcome})
}
