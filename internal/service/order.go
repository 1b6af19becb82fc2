package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	studiootel "github.com/Strob0t/Studio/internal/adapter/otel"
	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/domain/subscription"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/port/database"
	"github.com/Strob0t/Studio/internal/port/payment"
)

// OrderStore is the persistence OrderService needs.
type OrderStore interface {
	database.TenantStore
	database.SubscriptionStore
}

// OrderRequest is the checkout input.
type OrderRequest struct {
	Plan         string `json:"plan"`
	BillingCycle string `json:"billingCycle"`
	TenantID     string `json:"tenantId,omitempty"`
}

// Prefill is passed through to the checkout widget.
type Prefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// OrderResponse is what the client needs to open checkout.
type OrderResponse struct {
	OrderID  string            `json:"orderId"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	KeyID    string            `json:"keyId"`
	Prefill  Prefill           `json:"prefill"`
	Notes    map[string]string `json:"notes"`
}

// OrderService opens payment orders and records pending subscriptions.
type OrderService struct {
	store    OrderStore
	gateway  payment.Gateway
	currency string
	metrics  *studiootel.Metrics
	now      func() time.Time
}

// NewOrderService creates an OrderService charging in currency.
func NewOrderService(store OrderStore, gateway payment.Gateway, currency string) *OrderService {
	return &OrderService{store: store, gateway: gateway, currency: currency, now: time.Now}
}

// SetMetrics enables order counting.
func (s *OrderService) SetMetrics(m *studiootel.Metrics) { s.metrics = m }

// CreateOrder validates the request, asks the gateway for an order exactly
// once and upserts the pending subscription. The tenant is not modified.
func (s *OrderService) CreateOrder(ctx context.Context, req OrderRequest) (resp *OrderResponse, err error) {
	p, err := plan.Parse(req.Plan)
	if err != nil {
		return nil, err
	}
	if !p.Orderable() {
		return nil, domain.Validationf("plan %q cannot be ordered", p)
	}
	cycle, err := plan.ParseCycle(req.BillingCycle)
	if err != nil {
		return nil, err
	}
	amount, err := plan.Price(p, cycle)
	if err != nil {
		return nil, err
	}

	tid := middleware.TenantIDFromContext(ctx)
	if tid == "" {
		return nil, domain.ErrUnauthorized
	}
	if req.TenantID != "" && req.TenantID != tid {
		return nil, fmt.Errorf("order for tenant %s: %w", req.TenantID, domain.ErrForbidden)
	}

	ctx, span := studiootel.StartOrderSpan(ctx, tid, string(p), string(cycle))
	defer func() { studiootel.EndSpan(span, err) }()

	t, err := s.store.GetTenant(ctx, tid)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	notes := map[string]string{
		"tenant_id":     tid,
		"plan":          string(p),
		"billing_cycle": string(cycle),
	}
	order, err := s.gateway.CreateOrder(ctx, payment.OrderInput{
		AmountMinor: amount,
		Currency:    s.currency,
		Receipt:     receiptID(tid, s.now()),
		Notes:       notes,
	})
	if err != nil {
		logger.With(ctx).Warn("payment order failed", slog.String("plan", string(p)), slog.Any("error", err))
		return nil, err
	}

	if _, err := s.store.UpsertPendingSubscription(ctx, &subscription.Subscription{
		TenantID:        tid,
		Plan:            p,
		Cycle:           cycle,
		Status:          subscription.StatusPending,
		ProviderOrderID: order.ID,
		AmountMinor:     amount,
		Currency:        s.currency,
	}); err != nil {
		return nil, fmt.Errorf("record pending subscription: %w", err)
	}

	s.metrics.OrderCreated(ctx, string(p), string(cycle))
	logger.With(ctx).Info("payment order created",
		slog.String("order_id", order.ID), slog.String("plan", string(p)), slog.Int64("amount", amount))

	var prefill Prefill
	if u := middleware.UserFromContext(ctx); u != nil {
		prefill = Prefill{Name: u.DisplayName(), Email: u.Email}
	}
	if prefill.Name == "" {
		prefill.Name = t.Name
	}

	return &OrderResponse{
		OrderID:  order.ID,
		Amount:   amount,
		Currency: s.currency,
		KeyID:    s.gateway.KeyID(),
		Prefill:  prefill,
		Notes:    notes,
	}, nil
}

// ListSubscriptions returns the tenant's subscriptions, newest first.
func (s *OrderService) ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	return s.store.ListSubscriptions(ctx)
}

// ListPayments returns the tenant's payment ledger, newest first.
func (s *OrderService) ListPayments(ctx context.Context) ([]subscription.PaymentHistory, error) {
	return s.store.ListPaymentHistory(ctx)
}

// receiptID builds a receipt reference within the provider's 40 character limit.
func receiptID(tenantID string, now time.Time) string {
	short := tenantID
	if len(short) > 8 {
		short = short[:8]
	}
	return "rcpt_" + short + "_" + strconv.FormatInt(now.UnixNano(), 36)
}
