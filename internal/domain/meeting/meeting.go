// Package meeting defines scheduled sessions, their status machine and the
// change events published when they mutate.
package meeting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/Studio/internal/domain"
)

// Status is the lifecycle state of a meeting.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// ParseStatus validates a status value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", domain.Validationf("unknown meeting status %q", s)
}

// Terminal reports whether the meeting can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CheckTransition returns nil for allowed moves and for no-op moves to the
// current status.
func CheckTransition(from, to Status) error {
	if from == to {
		return nil
	}
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("meeting %s -> %s: %w", from, to, domain.ErrInvalidTransition)
}

const (
	maxTitleLen     = 200
	maxDurationMins = 24 * 60
)

// Meeting is a scheduled session owned by a tenant.
type Meeting struct {
	ID              string       `json:"id"`
	TenantID        string       `json:"tenant_id"`
	Code            string       `json:"code"`
	Title           string       `json:"title"`
	Description     string       `json:"description,omitempty"`
	HostID          string       `json:"host_id"`
	HostName        string       `json:"host_name,omitempty"`
	HostEmail       string       `json:"host_email,omitempty"`
	Participants    Participants `json:"participants"`
	ScheduledAt     *time.Time   `json:"scheduled_at,omitempty"`
	DurationMinutes int          `json:"duration_minutes"`
	JoinURL         string       `json:"join_url"`
	Status          Status       `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// EndsAt returns the scheduled end, or nil for unscheduled meetings.
func (m *Meeting) EndsAt() *time.Time {
	if m.ScheduledAt == nil {
		return nil
	}
	end := m.ScheduledAt.Add(time.Duration(m.DurationMinutes) * time.Minute)
	return &end
}

// CreateRequest is the input for scheduling a meeting.
type CreateRequest struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Participants    []string   `json:"participants"`
}

// Normalize validates the request, fills the default duration and returns
// the parsed participant list.
func (r *CreateRequest) Normalize(defaultDuration int) ([]Participant, error) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return nil, domain.Validationf("title is required")
	}
	if len(r.Title) > maxTitleLen {
		return nil, domain.Validationf("title must be at most %d characters", maxTitleLen)
	}
	if r.DurationMinutes == 0 {
		r.DurationMinutes = defaultDuration
	}
	if err := validateDuration(r.DurationMinutes); err != nil {
		return nil, err
	}
	return ParseParticipants(r.Participants)
}

// UpdateRequest changes descriptive fields of a meeting that has not ended.
type UpdateRequest struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}

// Apply mutates m in place. Terminal meetings cannot be edited.
func (r *UpdateRequest) Apply(m *Meeting) error {
	if m.Status.Terminal() {
		return fmt.Errorf("meeting is %s: %w", m.Status, domain.ErrInvalidTransition)
	}
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" || len(title) > maxTitleLen {
			return domain.Validationf("title must be 1 to %d characters", maxTitleLen)
		}
		m.Title = title
	}
	if r.Description != nil {
		m.Description = *r.Description
	}
	if r.ScheduledAt != nil {
		at := r.ScheduledAt.UTC()
		m.ScheduledAt = &at
	}
	if r.DurationMinutes != nil {
		if err := validateDuration(*r.DurationMinutes); err != nil {
			return err
		}
		m.DurationMinutes = *r.DurationMinutes
	}
	return nil
}

// StatusUpdate is the request body for a status change.
type StatusUpdate struct {
	Status string `json:"status"`
}

func validateDuration(n int) error {
	if n < 1 || n > maxDurationMins {
		return domain.Validationf("duration_minutes must be between 1 and %d", maxDurationMins)
	}
	return nil
}

// ErrUnscheduled is returned when a calendar entry is requested for a
// meeting without a start time.
var ErrUnscheduled = fmt.Errorf("%w: meeting has no scheduled time", domain.ErrValidation)
