package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/Studio/internal/domain/meeting"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject, and that the tenant in the payload
// matches the tenant token of the subject. Unknown subjects only need to
// be valid JSON.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	prefix, tenantID := splitTenant(subject)

	var payloadTenant func() string
	var target any
	switch prefix {
	case SubjectMeetingChanged:
		c := &meeting.Change{}
		target, payloadTenant = c, func() string { return c.TenantID }
	case SubjectNotificationCreated:
		n := &NotificationCreatedPayload{}
		target, payloadTenant = n, func() string { return n.TenantID }
	case SubjectSubscriptionChanged:
		s := &SubscriptionChangedPayload{}
		target, payloadTenant = s, func() string { return s.TenantID }
	default:
		return nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	if tenantID == "" {
		return fmt.Errorf("subject %s has no tenant token", subject)
	}
	if got := payloadTenant(); got != tenantID {
		return fmt.Errorf("subject %s carries payload for tenant %q", subject, got)
	}
	return nil
}

// SplitTenant returns the subject prefix and its trailing tenant token.
func SplitTenant(subject string) (prefix, tenantID string) {
	return splitTenant(subject)
}

func splitTenant(subject string) (string, string) {
	i := strings.LastIndexByte(subject, '.')
	if i < 0 {
		return subject, ""
	}
	prefix := subject[:i]
	switch prefix {
	case SubjectMeetingChanged, SubjectNotificationCreated, SubjectSubscriptionChanged:
		return prefix, subject[i+1:]
	}
	// Bare prefix without a tenant token.
	return subject, ""
}
