package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/notification"
)

const defaultNotificationLimit = 50

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) CreateNotification(ctx context.Context, n *notification.Notification) (*notification.Notification, error) {
	out := *n
	out.TenantID = tenantFromCtx(ctx)
	if err := insertNotification(ctx, s.pool, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// insertNotification writes n and fills in its ID and CreatedAt. n.TenantID
// must already be set.
func insertNotification(ctx context.Context, q rowQuerier, n *notification.Notification) error {
	var data []byte
	if len(n.Data) > 0 {
		var err error
		if data, err = json.Marshal(n.Data); err != nil {
			return fmt.Errorf("marshal notification data: %w", err)
		}
	}
	err := q.QueryRow(ctx,
		`INSERT INTO notifications (tenant_id, user_id, type, title, message, data)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, read, created_at`,
		n.TenantID, nullIfEmpty(n.UserID), n.Type, n.Title, n.Message, data,
	).Scan(&n.ID, &n.Read, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT n.id, n.tenant_id, n.user_id, n.type, n.title, n.message, n.data,
		        n.read OR r.user_id IS NOT NULL AS read, n.created_at
		 FROM notifications n
		 LEFT JOIN notification_reads r ON r.notification_id = n.id AND r.user_id = $2
		 WHERE n.tenant_id = $1 AND (n.user_id = $2 OR n.user_id IS NULL)
		   AND (NOT $3 OR NOT (n.read OR r.user_id IS NOT NULL))
		 ORDER BY n.created_at DESC
		 LIMIT $4`,
		tenantFromCtx(ctx), userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		var n notification.Notification
		var uid *string
		var data []byte
		if err := rows.Scan(&n.ID, &n.TenantID, &uid, &n.Type, &n.Title, &n.Message, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.UserID = derefString(uid)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &n.Data)
		}
		out = append(out, n)
	}
	return orEmpty(out), rows.Err()
}

// MarkNotificationRead flags a row addressed to userID as read, or records
// that userID read a tenant-wide row. Other users keep their own state.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	var visible int64
	err := s.pool.QueryRow(ctx,
		`WITH target AS (
		     SELECT id, user_id FROM notifications
		     WHERE id = $1 AND tenant_id = $2 AND (user_id = $3 OR user_id IS NULL)
		 ), own AS (
		     UPDATE notifications n SET read = true
		     FROM target t WHERE n.id = t.id AND t.user_id IS NOT NULL
		     RETURNING n.id
		 ), shared AS (
		     INSERT INTO notification_reads (notification_id, user_id)
		     SELECT id, $3 FROM target WHERE user_id IS NULL
		     ON CONFLICT DO NOTHING
		     RETURNING notification_id
		 )
		 SELECT count(*) FROM target`,
		id, tenantFromCtx(ctx), userID).Scan(&visible)
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	if visible == 0 {
		return fmt.Errorf("mark notification %s read: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkAllNotificationsRead returns how many rows changed from unread to
// read for userID.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`WITH own AS (
		     UPDATE notifications SET read = true
		     WHERE tenant_id = $1 AND user_id = $2 AND read = false
		     RETURNING id
		 ), shared AS (
		     INSERT INTO notification_reads (notification_id, user_id)
		     SELECT id, $2 FROM notifications
		     WHERE tenant_id = $1 AND user_id IS NULL AND read = false
		     ON CONFLICT DO NOTHING
		     RETURNING notification_id
		 )
		 SELECT (SELECT count(*) FROM own) + (SELECT count(*) FROM shared)`,
		tenantFromCtx(ctx), userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

// DeleteNotification removes a row addressed to userID. With includeShared
// it may also remove a tenant-wide row, for every user of the tenant.
func (s *Store) DeleteNotification(ctx context.Context, id, userID string, includeShared bool) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM notifications
		 WHERE id = $1 AND tenant_id = $2 AND (user_id = $3 OR ($4 AND user_id IS NULL))`,
		id, tenantFromCtx(ctx), userID, includeShared)
	return execExpectOne(tag, err, "delete notification %s", id)
}
