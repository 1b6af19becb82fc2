package messagequeue

import "time"

// NotificationCreatedPayload is the schema for notifications.created.* messages.
type NotificationCreatedPayload struct {
	NotificationID string `json:"notification_id"`
	TenantID       string `json:"tenant_id"`
	UserID         string `json:"user_id,omitempty"`
	Type           string `json:"type"`
	Title          string `json:"title"`
}

// SubscriptionChangedPayload is the schema for subscriptions.changed.* messages.
type SubscriptionChangedPayload struct {
	TenantID        string    `json:"tenant_id"`
	ProviderOrderID string    `json:"provider_order_id"`
	Status          string    `json:"status"`
	Plan            string    `json:"plan"`
	ChangedAt       time.Time `json:"changed_at"`
}
