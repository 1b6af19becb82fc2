// Package webhook defines the payment provider callback payload and the
// receipts recorded for idempotent processing.
package webhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Strob0t/Studio/internal/domain"
)

// EventType is the provider's event name.
type EventType string

const (
	PaymentCaptured       EventType = "payment.captured"
	PaymentFailed         EventType = "payment.failed"
	SubscriptionCancelled EventType = "subscription.cancelled"
)

// Handled reports whether the service models this event type.
func (t EventType) Handled() bool {
	switch t {
	case PaymentCaptured, PaymentFailed, SubscriptionCancelled:
		return true
	}
	return false
}

// Notes are the free-form key/value pairs attached to an order.
type Notes map[string]string

// UnmarshalJSON accepts both an object and the empty array the provider
// sends when no notes are set.
func (n *Notes) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		*n = Notes{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	out := make(Notes, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	*n = out
	return nil
}

// PaymentEntity is the payment object in a callback.
type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	Email            string `json:"email"`
	Notes            Notes  `json:"notes"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

// SubscriptionEntity is the provider-side subscription object in a callback.
type SubscriptionEntity struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Notes  Notes  `json:"notes"`
}

// PaymentEvent is a decoded provider callback.
type PaymentEvent struct {
	ID        string    `json:"-"`
	Event     EventType `json:"event"`
	CreatedAt int64     `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity SubscriptionEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

// Parse decodes a raw callback body. eventID is the provider's delivery id;
// when empty the SHA-256 of the body is used so byte-identical replays
// share an id.
func Parse(body []byte, eventID string) (*PaymentEvent, error) {
	var ev PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, domain.Validationf("invalid webhook payload: %v", err)
	}
	if ev.Event == "" {
		return nil, domain.Validationf("webhook payload has no event type")
	}
	if eventID == "" {
		sum := sha256.Sum256(body)
		eventID = "sha256:" + hex.EncodeToString(sum[:])
	}
	ev.ID = eventID
	return &ev, nil
}

// Payment returns the payment entity.
func (e *PaymentEvent) Payment() PaymentEntity { return e.Payload.Payment.Entity }

// Subscription returns the provider subscription entity.
func (e *PaymentEvent) Subscription() SubscriptionEntity { return e.Payload.Subscription.Entity }

// OrderID returns the order the event refers to, looking at the payment
// first and then at the notes of either entity.
func (e *PaymentEvent) OrderID() string {
	if id := e.Payment().OrderID; id != "" {
		return id
	}
	if id := e.Payment().Notes["order_id"]; id != "" {
		return id
	}
	return e.Subscription().Notes["order_id"]
}

// OccurredAt is the provider timestamp, falling back to now.
func (e *PaymentEvent) OccurredAt(now time.Time) time.Time {
	if e.CreatedAt <= 0 {
		return now
	}
	return time.Unix(e.CreatedAt, 0).UTC()
}

// Outcome classifies how a received event was handled.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeOrphaned  Outcome = "orphaned"
)

// Receipt is the persisted record of one processed event.
type Receipt struct {
	Provider   string    `json:"provider"`
	EventID    string    `json:"event_id"`
	EventType  EventType `json:"event_type"`
	OrderID    string    `json:"order_id,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	ReceivedAt time.Time `json:"received_at"`
}
