// Package broadcast defines the port for pushing real-time events to connected clients.
package broadcast

import "context"

// Event types pushed to clients.
const (
	EventMeetingChanged      = "meeting.changed"
	EventMeetingsResync      = "meetings.resync"
	EventNotificationCreated = "notification.created"
	EventSubscriptionChanged = "subscription.changed"
)

// Broadcaster sends real-time events to the connected clients of one tenant.
type Broadcaster interface {
	BroadcastToTenant(ctx context.Context, tenantID, eventType string, payload any)
}
