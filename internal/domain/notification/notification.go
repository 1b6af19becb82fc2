// Package notification defines in-app notifications.
package notification

import (
	"errors"
	"time"
)

// Type tags the kind of notification for display.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeTeam    Type = "team"
	TypeContent Type = "content"
	TypeSystem  Type = "system"
)

var validTypes = map[Type]bool{
	TypeInfo: true, TypeSuccess: true, TypeWarning: true, TypeError: true,
	TypeTeam: true, TypeContent: true, TypeSystem: true,
}

// Notification is a tenant-scoped message, optionally addressed to one user.
// An empty UserID makes it visible to every member of the tenant.
type Notification struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	UserID    string         `json:"user_id,omitempty"`
	Type      Type           `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateRequest is the input for recording a notification.
type CreateRequest struct {
	UserID  string         `json:"user_id,omitempty"`
	Type    Type           `json:"type"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Validate checks required fields and the type tag.
func (r *CreateRequest) Validate() error {
	if r.Title == "" {
		return errors.New("title is required")
	}
	if r.Type == "" {
		r.Type = TypeInfo
	}
	if !validTypes[r.Type] {
		return errors.New("invalid notification type")
	}
	return nil
}
