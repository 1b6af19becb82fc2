package http

import (
	"net/http"

	"github.com/Strob0t/Studio/internal/domain/notification"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// ListNotifications handles GET /api/v1/notifications?unread=true&limit=N
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultNotificationLimit)
	if limit == 0 || limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	items, err := h.Notifications.List(r.Context(), queryBool(r, "unread"), limit)
	if err != nil {
		writeDomainError(w, err, "notifications not found")
		return
	}
	if items == nil {
		items = []notification.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

// MarkNotificationRead handles POST /api/v1/notifications/{id}/read
func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Notifications.MarkRead(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /api/v1/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Notifications.MarkAllRead(r.Context())
	if err != nil {
		writeDomainError(w, err, "notifications not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// DeleteNotification handles DELETE /api/v1/notifications/{id}
func (h *Handlers) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	deleteByID(h.Notifications.Delete, "notification not found")(w, r)
}
