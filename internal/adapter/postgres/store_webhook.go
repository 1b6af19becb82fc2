package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/subscription"
	"github.com/Strob0t/Studio/internal/domain/webhook"
	"github.com/Strob0t/Studio/internal/port/database"
)

// ApplyPaymentEvent runs one provider event in a single transaction. The
// receipt insert comes first so a concurrent duplicate blocks on the
// primary key and then sees ErrDuplicate; the subscription row is locked
// FOR UPDATE so events for the same order are serialized.
func (s *Store) ApplyPaymentEvent(ctx context.Context, receipt webhook.Receipt, match database.SubscriptionMatch, fn database.ApplyFunc) (database.Mutation, webhook.Outcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Mutation{}, "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tag, err := tx.Exec(ctx,
		`INSERT INTO webhook_events (provider, event_id, event_type, order_id, outcome, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (provider, event_id) DO NOTHING`,
		receipt.Provider, receipt.EventID, receipt.EventType, receipt.OrderID, webhook.OutcomeApplied, receipt.ReceivedAt.UTC())
	if err != nil {
		return database.Mutation{}, "", fmt.Errorf("record webhook event %s: %w", receipt.EventID, err)
	}
	if tag.RowsAffected() == 0 {
		return database.Mutation{}, webhook.OutcomeDuplicate, fmt.Errorf("webhook event %s: %w", receipt.EventID, domain.ErrDuplicate)
	}

	cur, err := lockSubscription(ctx, tx, match)
	if err != nil {
		return database.Mutation{}, "", err
	}

	mut, outcome, err := fn(cur)
	if err != nil {
		return database.Mutation{}, outcome, err
	}

	if mut.Subscription != nil {
		if err := updateSubscription(ctx, tx, mut.Subscription); err != nil {
			return database.Mutation{}, "", err
		}
	}
	if mut.TenantPlan != "" && cur != nil {
		tag, err := tx.Exec(ctx,
			`UPDATE tenants SET plan = $2, updated_at = now() WHERE id = $1`, cur.TenantID, mut.TenantPlan)
		if err := execExpectOne(tag, err, "update tenant plan %s", cur.TenantID); err != nil {
			return database.Mutation{}, "", err
		}
	}
	if mut.Payment != nil {
		if err := insertPayment(ctx, tx, mut.Payment); err != nil {
			return database.Mutation{}, "", err
		}
	}
	if mut.Notification != nil {
		if err := insertNotification(ctx, tx, mut.Notification); err != nil {
			return database.Mutation{}, "", err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE webhook_events SET outcome = $3 WHERE provider = $1 AND event_id = $2`,
		receipt.Provider, receipt.EventID, outcome); err != nil {
		return database.Mutation{}, "", fmt.Errorf("update webhook outcome: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Mutation{}, "", fmt.Errorf("commit webhook event %s: %w", receipt.EventID, err)
	}
	return mut, outcome, nil
}

func lockSubscription(ctx context.Context, tx pgx.Tx, match database.SubscriptionMatch) (*subscription.Subscription, error) {
	if match.OrderID == "" && match.ProviderSubscriptionID == "" {
		return nil, nil
	}
	sub, err := scanSubscription(tx.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE ($1 <> '' AND provider_order_id = $1)
		    OR ($2 <> '' AND provider_subscription_id = $2)
		 ORDER BY created_at DESC
		 LIMIT 1
		 FOR UPDATE`,
		match.OrderID, match.ProviderSubscriptionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock subscription %s: %w", match.OrderID, err)
	}
	return &sub, nil
}

func updateSubscription(ctx context.Context, tx pgx.Tx, sub *subscription.Subscription) error {
	tag, err := tx.Exec(ctx,
		`UPDATE subscriptions
		 SET status = $2, provider_payment_id = $3, provider_subscription_id = $4,
		     period_start = $5, period_end = $6, updated_at = now()
		 WHERE id = $1`,
		sub.ID, sub.Status, nullIfEmpty(sub.ProviderPaymentID), nullIfEmpty(sub.ProviderSubscriptionID),
		nullTime(sub.PeriodStart), nullTime(sub.PeriodEnd))
	return execExpectOne(tag, err, "update subscription %s", sub.ID)
}

func insertPayment(ctx context.Context, tx pgx.Tx, p *subscription.PaymentHistory) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO payment_history (tenant_id, subscription_id, provider_payment_id, provider_event_id,
		                              status, amount, currency, failure_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (provider_payment_id, status) DO NOTHING
		 RETURNING id, created_at`,
		p.TenantID, p.SubscriptionID, p.ProviderPaymentID, p.ProviderEventID,
		p.Status, p.AmountMinor, p.Currency, p.FailureReason,
	).Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Same payment already recorded under a different event id.
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert payment %s: %w", p.ProviderPaymentID, err)
	}
	return nil
}

// PurgeWebhookEvents deletes receipts received before olderThan across all tenants.
func (s *Store) PurgeWebhookEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM webhook_events WHERE received_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge webhook events: %w", err)
	}
	return tag.RowsAffected(), nil
}
