// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/Strob0t/Studio/internal/domain/meeting"
	"github.com/Strob0t/Studio/internal/domain/notification"
	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/domain/subscription"
	"github.com/Strob0t/Studio/internal/domain/tenant"
	"github.com/Strob0t/Studio/internal/domain/user"
	"github.com/Strob0t/Studio/internal/domain/webhook"
)

// Store is the port interface for database operations. Every method except
// the explicitly cross-tenant ones (webhook processing, admin tenant
// listing, retention) is scoped to the tenant carried by ctx.
type Store interface {
	TenantStore
	SubscriptionStore
	MeetingStore
	NotificationStore
	WebhookStore

	// Ping checks connectivity for health reporting.
	Ping(ctx context.Context) error
}

// TenantStore persists tenants and role assignments.
type TenantStore interface {
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	UpdateTenantPlan(ctx context.Context, id string, p plan.Plan) error
	// GetUserRole returns the role stored in user_roles, or ErrNotFound.
	GetUserRole(ctx context.Context, userID string) (user.Role, error)
}

// SubscriptionStore persists subscriptions and the payment ledger.
type SubscriptionStore interface {
	// UpsertPendingSubscription inserts or refreshes the pending row keyed by
	// the provider order id.
	UpsertPendingSubscription(ctx context.Context, s *subscription.Subscription) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error)
	ListPaymentHistory(ctx context.Context) ([]subscription.PaymentHistory, error)
}

// MeetingStore persists meetings.
type MeetingStore interface {
	CreateMeeting(ctx context.Context, m *meeting.Meeting) (*meeting.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error)
	ListMeetings(ctx context.Context) ([]meeting.Meeting, error)
	// UpdateMeeting writes m back. The row must still be at expectedUpdatedAt,
	// otherwise ErrConflict is returned.
	UpdateMeeting(ctx context.Context, m *meeting.Meeting, expectedUpdatedAt time.Time) (*meeting.Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *notification.Notification) (*notification.Notification, error)
	// ListNotifications returns rows for userID plus tenant-wide rows.
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error)
	// MarkNotificationRead and MarkAllNotificationsRead track read state per
	// user; reading a tenant-wide row does not mark it read for anyone else.
	MarkNotificationRead(ctx context.Context, id, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	// DeleteNotification removes a row owned by userID, or a tenant-wide row
	// when includeShared is set.
	DeleteNotification(ctx context.Context, id, userID string, includeShared bool) error
}

// Mutation is what a webhook event does to the locked subscription. A nil
// Subscription means the state machine ignored the event.
type Mutation struct {
	Subscription *subscription.Subscription
	TenantPlan   plan.Plan
	Payment      *subscription.PaymentHistory
	Notification *notification.Notification
}

// ApplyFunc decides the Mutation for a locked subscription. cur is nil when
// no subscription matches the event's order.
type ApplyFunc func(cur *subscription.Subscription) (Mutation, webhook.Outcome, error)

// WebhookStore applies provider events atomically.
type WebhookStore interface {
	// ApplyPaymentEvent records the receipt, locks the matching subscription
	// and applies the returned Mutation in one transaction. A receipt that
	// already exists yields ErrDuplicate and no change. When fn returns an
	// error the transaction is rolled back, receipt included.
	ApplyPaymentEvent(ctx context.Context, receipt webhook.Receipt, match SubscriptionMatch, fn ApplyFunc) (Mutation, webhook.Outcome, error)
	PurgeWebhookEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// SubscriptionMatch identifies the subscription an event refers to.
type SubscriptionMatch struct {
	OrderID                string
	ProviderSubscriptionID string
}
