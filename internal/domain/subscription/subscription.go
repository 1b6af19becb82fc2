// Package subscription defines billing records and their status machine.
package subscription

import (
	"fmt"
	"time"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/plan"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// transitions lists the allowed successor states. Failed and cancelled are
// terminal: reactivation requires a new order and therefore a new row.
var transitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusFailed},
	StatusActive:  {StatusCancelled},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Subscription is a billing record owned by a tenant.
type Subscription struct {
	ID                     string     `json:"id"`
	TenantID               string     `json:"tenant_id"`
	Plan                   plan.Plan  `json:"plan"`
	Cycle                  plan.Cycle `json:"billing_cycle"`
	Status                 Status     `json:"status"`
	ProviderOrderID        string     `json:"provider_order_id"`
	ProviderPaymentID      string     `json:"provider_payment_id,omitempty"`
	ProviderSubscriptionID string     `json:"provider_subscription_id,omitempty"`
	AmountMinor            int64      `json:"amount"`
	Currency               string     `json:"currency"`
	PeriodStart            *time.Time `json:"period_start,omitempty"`
	PeriodEnd              *time.Time `json:"period_end,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Activate moves a pending subscription to active with a fresh billing period.
func (s *Subscription) Activate(paymentID string, now time.Time) error {
	if err := s.moveTo(StatusActive); err != nil {
		return err
	}
	start := now.UTC()
	end := start.AddDate(0, 0, s.Cycle.PeriodDays())
	s.ProviderPaymentID = paymentID
	s.PeriodStart = &start
	s.PeriodEnd = &end
	s.UpdatedAt = start
	return nil
}

// Fail moves a pending subscription to failed.
func (s *Subscription) Fail(paymentID string, now time.Time) error {
	if err := s.moveTo(StatusFailed); err != nil {
		return err
	}
	if paymentID != "" {
		s.ProviderPaymentID = paymentID
	}
	s.UpdatedAt = now.UTC()
	return nil
}

// Cancel moves an active subscription to cancelled.
func (s *Subscription) Cancel(now time.Time) error {
	if err := s.moveTo(StatusCancelled); err != nil {
		return err
	}
	s.UpdatedAt = now.UTC()
	return nil
}

func (s *Subscription) moveTo(to Status) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("subscription %s: %s -> %s: %w", s.ProviderOrderID, s.Status, to, domain.ErrInvalidTransition)
	}
	s.Status = to
	return nil
}

// PaymentStatus is the outcome recorded in the payment ledger.
type PaymentStatus string

const (
	PaymentCaptured PaymentStatus = "captured"
	PaymentFailed   PaymentStatus = "failed"
)

// PaymentHistory is one append-only ledger entry for a provider callback.
type PaymentHistory struct {
	ID                string        `json:"id"`
	TenantID          string        `json:"tenant_id"`
	SubscriptionID    string        `json:"subscription_id"`
	ProviderPaymentID string        `json:"provider_payment_id"`
	ProviderEventID   string        `json:"provider_event_id"`
	Status            PaymentStatus `json:"status"`
	AmountMinor       int64         `json:"amount"`
	Currency          string        `json:"currency"`
	FailureReason     string        `json:"failure_reason,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}
