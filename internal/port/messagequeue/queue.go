// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject
	// pattern. Every process gets its own consumer, so each instance sees
	// every message. The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// OnReconnect registers fn to run after the connection is re-established.
	OnReconnect(fn func())

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject prefixes. The tenant id is appended as the last token.
const (
	SubjectMeetingChanged      = "meetings.changed"
	SubjectNotificationCreated = "notifications.created"
	SubjectSubscriptionChanged = "subscriptions.changed"
)

// TenantSubject returns prefix.tenantID.
func TenantSubject(prefix, tenantID string) string {
	return prefix + "." + tenantID
}
