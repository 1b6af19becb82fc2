// Package service contains application services.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/notification"
	"github.com/Strob0t/Studio/internal/domain/user"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/port/broadcast"
	"github.com/Strob0t/Studio/internal/port/database"
	"github.com/Strob0t/Studio/internal/port/messagequeue"
)

// NotificationService records in-app notifications and announces them to
// connected clients.
type NotificationService struct {
	store database.NotificationStore
	hub   broadcast.Broadcaster
	queue messagequeue.Queue
}

// NewNotificationService creates a NotificationService. hub and queue may be
// nil; with a queue, announcements travel through NATS so every instance
// can push them to its own websocket clients.
func NewNotificationService(store database.NotificationStore, hub broadcast.Broadcaster, queue messagequeue.Queue) *NotificationService {
	return &NotificationService{store: store, hub: hub, queue: queue}
}

// Create records a notification for the tenant in ctx and announces it.
func (s *NotificationService) Create(ctx context.Context, req notification.CreateRequest) (*notification.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Validationf("%v", err)
	}
	tid := middleware.TenantIDFromContext(ctx)
	if tid == "" {
		return nil, fmt.Errorf("create notification: %w", domain.ErrUnauthorized)
	}

	n, err := s.store.CreateNotification(ctx, &notification.Notification{
		TenantID: tid,
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Data:     req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	s.Announce(ctx, n)
	return n, nil
}

// Announce pushes an already persisted notification to clients. Failures
// are logged; the row stays readable through List.
func (s *NotificationService) Announce(ctx context.Context, n *notification.Notification) {
	payload := messagequeue.NotificationCreatedPayload{
		NotificationID: n.ID,
		TenantID:       n.TenantID,
		UserID:         n.UserID,
		Type:           string(n.Type),
		Title:          n.Title,
	}

	if s.queue != nil && s.queue.IsConnected() {
		data, err := json.Marshal(payload)
		if err == nil {
			subject := messagequeue.TenantSubject(messagequeue.SubjectNotificationCreated, n.TenantID)
			if err = s.queue.Publish(ctx, subject, data); err == nil {
				return
			}
		}
		logger.With(ctx).Warn("publish notification failed, broadcasting locally",
			slog.String("notification_id", n.ID), slog.Any("error", err))
	}
	if s.hub != nil {
		s.hub.BroadcastToTenant(ctx, n.TenantID, broadcast.EventNotificationCreated, payload)
	}
}

// List returns the caller's notifications plus tenant-wide ones.
func (s *NotificationService) List(ctx context.Context, unreadOnly bool, limit int) ([]notification.Notification, error) {
	uid, err := currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListNotifications(ctx, uid, unreadOnly, limit)
}

// MarkRead flags one visible notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	uid, err := currentUserID(ctx)
	if err != nil {
		return err
	}
	return s.store.MarkNotificationRead(ctx, id, uid)
}

// MarkAllRead flags every visible notification as read.
func (s *NotificationService) MarkAllRead(ctx context.Context) (int64, error) {
	uid, err := currentUserID(ctx)
	if err != nil {
		return 0, err
	}
	return s.store.MarkAllNotificationsRead(ctx, uid)
}

// Delete removes a notification addressed to the caller. Tenant admins may
// also delete tenant-wide rows, which removes them for every user. Rows of
// other users, and tenant-wide rows for non-admins, are reported as not found.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	uid, err := currentUserID(ctx)
	if err != nil {
		return err
	}
	admin := middleware.UserFromContext(ctx).Role == user.RoleAdmin
	return s.store.DeleteNotification(ctx, id, uid, admin)
}

func currentUserID(ctx context.Context) (string, error) {
	u := middleware.UserFromContext(ctx)
	if u == nil || u.ID == "" {
		return "", domain.ErrUnauthorized
	}
	return u.ID, nil
}
