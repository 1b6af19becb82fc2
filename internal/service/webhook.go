package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	studiootel "github.com/Strob0t/Studio/internal/adapter/otel"
	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/notification"
	"github.com/Strob0t/Studio/internal/domain/subscription"
	"github.com/Strob0t/Studio/internal/domain/webhook"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/port/database"
	"github.com/Strob0t/Studio/internal/port/messagequeue"
)

// PaymentProvider is the provider name recorded on webhook receipts.
const PaymentProvider = "razorpay"

// WebhookService applies payment provider callbacks to subscriptions.
type WebhookService struct {
	store         database.WebhookStore
	notifications *NotificationService
	quota         *QuotaService
	queue         messagequeue.Queue
	orphanGrace   time.Duration
	metrics       *studiootel.Metrics
	now           func() time.Time
}

// NewWebhookService creates a WebhookService. Events for orders that are not
// yet known are retried by the provider for orphanGrace, then recorded as
// orphaned.
func NewWebhookService(store database.WebhookStore, notifications *NotificationService, quota *QuotaService, queue messagequeue.Queue, orphanGrace time.Duration) *WebhookService {
	return &WebhookService{
		store:         store,
		notifications: notifications,
		quota:         quota,
		queue:         queue,
		orphanGrace:   orphanGrace,
		now:           time.Now,
	}
}

// SetMetrics enables webhook event counting.
func (s *WebhookService) SetMetrics(m *studiootel.Metrics) { s.metrics = m }

// HandlePaymentEvent processes one verified callback body. Unknown event
// types, duplicates, orphans and disallowed transitions all succeed so the
// provider stops redelivering; ErrRetryLater asks it to try again.
func (s *WebhookService) HandlePaymentEvent(ctx context.Context, body []byte, eventID string) (outcome webhook.Outcome, err error) {
	ev, err := webhook.Parse(body, eventID)
	if err != nil {
		return "", err
	}
	log := logger.With(ctx).With(
		slog.String("event_id", ev.ID),
		slog.String("event_type", string(ev.Event)),
		slog.String("order_id", ev.OrderID()),
	)

	ctx, span := studiootel.StartWebhookSpan(ctx, string(ev.Event), ev.ID)
	defer func() {
		studiootel.EndSpan(span, err)
		if err == nil {
			s.metrics.WebhookEvent(ctx, string(ev.Event), string(outcome))
		}
	}()

	if !ev.Event.Handled() {
		log.Info("webhook event type ignored")
		return webhook.OutcomeIgnored, nil
	}

	now := s.now().UTC()
	receipt := webhook.Receipt{
		Provider:   PaymentProvider,
		EventID:    ev.ID,
		EventType:  ev.Event,
		OrderID:    ev.OrderID(),
		ReceivedAt: now,
	}
	match := database.SubscriptionMatch{OrderID: ev.OrderID()}
	if ev.Event == webhook.SubscriptionCancelled {
		match.ProviderSubscriptionID = ev.Subscription().ID
	}

	mut, outcome, err := s.store.ApplyPaymentEvent(ctx, receipt, match, func(cur *subscription.Subscription) (database.Mutation, webhook.Outcome, error) {
		return s.decide(ctx, ev, cur, now)
	})
	if errors.Is(err, domain.ErrDuplicate) {
		log.Info("duplicate webhook event")
		return webhook.OutcomeDuplicate, nil
	}
	if err != nil {
		if errors.Is(err, domain.ErrRetryLater) {
			log.Warn("subscription not found yet, asking provider to retry")
		}
		return "", fmt.Errorf("apply payment event %s: %w", ev.ID, err)
	}

	log.Info("webhook event processed", slog.String("outcome", string(outcome)))
	s.afterCommit(ctx, mut)
	return outcome, nil
}

// decide runs inside the store transaction with the subscription locked.
func (s *WebhookService) decide(ctx context.Context, ev *webhook.PaymentEvent, cur *subscription.Subscription, now time.Time) (database.Mutation, webhook.Outcome, error) {
	log := logger.With(ctx).With(slog.String("event_id", ev.ID), slog.String("order_id", ev.OrderID()))

	if cur == nil {
		if now.Sub(ev.OccurredAt(now)) < s.orphanGrace {
			return database.Mutation{}, "", fmt.Errorf("no subscription for order %q: %w", ev.OrderID(), domain.ErrRetryLater)
		}
		log.Warn("webhook event for unknown subscription recorded as orphaned")
		return database.Mutation{}, webhook.OutcomeOrphaned, nil
	}

	pay := ev.Payment()
	paymentID := pay.ID
	if paymentID == "" {
		paymentID = ev.ID
	}
	amount, currency := pay.Amount, pay.Currency
	if amount == 0 {
		amount = cur.AmountMinor
	}
	if currency == "" {
		currency = cur.Currency
	}

	next := *cur
	var mut database.Mutation
	switch ev.Event {
	case webhook.PaymentCaptured:
		if err := next.Activate(paymentID, now); err != nil {
			return s.ignore(log, cur, err)
		}
		if notePlan := pay.Notes["plan"]; notePlan != "" && notePlan != string(cur.Plan) {
			log.Warn("payment notes disagree with subscription plan",
				slog.String("notes_plan", notePlan), slog.String("plan", string(cur.Plan)))
		}
		mut = database.Mutation{
			Subscription: &next,
			TenantPlan:   next.Plan,
			Payment: &subscription.PaymentHistory{
				TenantID:          cur.TenantID,
				SubscriptionID:    cur.ID,
				ProviderPaymentID: paymentID,
				ProviderEventID:   ev.ID,
				Status:            subscription.PaymentCaptured,
				AmountMinor:       amount,
				Currency:          currency,
			},
			Notification: &notification.Notification{
				TenantID: cur.TenantID,
				Type:     notification.TypeSuccess,
				Title:    "Payment successful",
				Message: fmt.Sprintf("Your %s plan is active until %s.",
					next.Plan.Label(), next.PeriodEnd.Format("January 2, 2006")),
				Data: map[string]any{"plan": string(next.Plan), "order_id": cur.ProviderOrderID},
			},
		}

	case webhook.PaymentFailed:
		if err := next.Fail(paymentID, now); err != nil {
			return s.ignore(log, cur, err)
		}
		reason := pay.ErrorDescription
		if reason == "" {
			reason = "The payment could not be completed."
		}
		mut = database.Mutation{
			Subscription: &next,
			Payment: &subscription.PaymentHistory{
				TenantID:          cur.TenantID,
				SubscriptionID:    cur.ID,
				ProviderPaymentID: paymentID,
				ProviderEventID:   ev.ID,
				Status:            subscription.PaymentFailed,
				AmountMinor:       amount,
				Currency:          currency,
				FailureReason:     pay.ErrorDescription,
			},
			Notification: &notification.Notification{
				TenantID: cur.TenantID,
				Type:     notification.TypeError,
				Title:    "Payment failed",
				Message:  reason,
				Data:     map[string]any{"plan": string(cur.Plan), "order_id": cur.ProviderOrderID},
			},
		}

	case webhook.SubscriptionCancelled:
		if err := next.Cancel(now); err != nil {
			return s.ignore(log, cur, err)
		}
		if id := ev.Subscription().ID; id != "" && next.ProviderSubscriptionID == "" {
			next.ProviderSubscriptionID = id
		}
		mut = database.Mutation{
			Subscription: &next,
			Notification: &notification.Notification{
				TenantID: cur.TenantID,
				Type:     notification.TypeWarning,
				Title:    "Subscription cancelled",
				Message:  fmt.Sprintf("Your %s subscription has been cancelled.", cur.Plan.Label()),
				Data:     map[string]any{"plan": string(cur.Plan), "order_id": cur.ProviderOrderID},
			},
		}
	}
	return mut, webhook.OutcomeApplied, nil
}

func (s *WebhookService) ignore(log *slog.Logger, cur *subscription.Subscription, err error) (database.Mutation, webhook.Outcome, error) {
	if !errors.Is(err, domain.ErrInvalidTransition) {
		return database.Mutation{}, "", err
	}
	log.Info("webhook transition not allowed, ignoring",
		slog.String("status", string(cur.Status)), slog.Any("error", err))
	return database.Mutation{}, webhook.OutcomeIgnored, nil
}

func (s *WebhookService) afterCommit(ctx context.Context, mut database.Mutation) {
	if mut.Subscription == nil {
		return
	}
	sub := mut.Subscription
	if mut.TenantPlan != "" && s.quota != nil {
		s.quota.InvalidatePlan(ctx, sub.TenantID)
	}
	if mut.Notification != nil && s.notifications != nil {
		s.notifications.Announce(ctx, mut.Notification)
	}
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.SubscriptionChangedPayload{
		TenantID:        sub.TenantID,
		ProviderOrderID: sub.ProviderOrderID,
		Status:          string(sub.Status),
		Plan:            string(sub.Plan),
		ChangedAt:       sub.UpdatedAt,
	})
	if err != nil {
		return
	}
	subject := messagequeue.TenantSubject(messagequeue.SubjectSubscriptionChanged, sub.TenantID)
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		logger.With(ctx).Warn("publish subscription change failed", slog.Any("error", err))
	}
}
