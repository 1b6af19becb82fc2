package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/subscription"
)

const subscriptionColumns = `id, tenant_id, plan, billing_cycle, status, provider_order_id,
	provider_payment_id, provider_subscription_id, amount, currency,
	period_start, period_end, created_at, updated_at`

func scanSubscription(row scannable) (subscription.Subscription, error) {
	var sub subscription.Subscription
	var paymentID, providerSubID *string
	err := row.Scan(
		&sub.ID, &sub.TenantID, &sub.Plan, &sub.Cycle, &sub.Status, &sub.ProviderOrderID,
		&paymentID, &providerSubID, &sub.AmountMinor, &sub.Currency,
		&sub.PeriodStart, &sub.PeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	sub.ProviderPaymentID = derefString(paymentID)
	sub.ProviderSubscriptionID = derefString(providerSubID)
	return sub, err
}

// UpsertPendingSubscription inserts the pending row for a provider order. A
// repeated call for the same order refreshes it only while still pending.
func (s *Store) UpsertPendingSubscription(ctx context.Context, sub *subscription.Subscription) (*subscription.Subscription, error) {
	out, err := scanSubscription(s.pool.QueryRow(ctx,
		`INSERT INTO subscriptions (tenant_id, plan, billing_cycle, status, provider_order_id, amount, currency)
		 VALUES ($1, $2, $3, 'pending', $4, $5, $6)
		 ON CONFLICT (provider_order_id) DO UPDATE
		   SET plan = EXCLUDED.plan, billing_cycle = EXCLUDED.billing_cycle,
		       amount = EXCLUDED.amount, currency = EXCLUDED.currency, updated_at = now()
		   WHERE subscriptions.status = 'pending' AND subscriptions.tenant_id = EXCLUDED.tenant_id
		 RETURNING `+subscriptionColumns,
		tenantFromCtx(ctx), sub.Plan, sub.Cycle, sub.ProviderOrderID, sub.AmountMinor, sub.Currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("upsert subscription %s: %w", sub.ProviderOrderID, domain.ErrConflict)
		}
		return nil, fmt.Errorf("upsert subscription %s: %w", sub.ProviderOrderID, err)
	}
	return &out, nil
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return orEmpty(subs), rows.Err()
}

func (s *Store) ListPaymentHistory(ctx context.Context) ([]subscription.PaymentHistory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, subscription_id, provider_payment_id, provider_event_id,
		        status, amount, currency, failure_reason, created_at
		 FROM payment_history WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list payment history: %w", err)
	}
	defer rows.Close()

	var out []subscription.PaymentHistory
	for rows.Next() {
		var h subscription.PaymentHistory
		if err := rows.Scan(&h.ID, &h.TenantID, &h.SubscriptionID, &h.ProviderPaymentID, &h.ProviderEventID,
			&h.Status, &h.AmountMinor, &h.Currency, &h.FailureReason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment history: %w", err)
		}
		out = append(out, h)
	}
	return orEmpty(out), rows.Err()
}
