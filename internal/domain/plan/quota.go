package plan

import (
	"fmt"
	"strings"
)

// Default participant limits per tier.
var defaultLimits = map[Plan]int{
	Free:         2,
	Starter:      25,
	Professional: 100,
	Enterprise:   100,
}

// ParticipantLimit returns the default participant limit for p.
// Unknown plans get the free limit.
func ParticipantLimit(p Plan) int {
	return DefaultQuota().Limit(p)
}

// Contact is the upgrade path returned with a quota rejection.
type Contact struct {
	Email string `json:"email,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Quota maps plans to participant limits. The zero value is unusable;
// build one with DefaultQuota or NewQuota.
type Quota struct {
	limits  map[Plan]int
	contact Contact
}

// DefaultQuota returns the built-in limit table.
func DefaultQuota() Quota {
	return NewQuota(nil, Contact{})
}

// NewQuota builds a Quota from the defaults with overrides applied. Override
// keys are parsed with Parse; unknown names are ignored.
func NewQuota(overrides map[string]int, contact Contact) Quota {
	limits := make(map[Plan]int, len(defaultLimits))
	for p, n := range defaultLimits {
		limits[p] = n
	}
	for name, n := range overrides {
		p, err := Parse(name)
		if err != nil || n < 1 {
			continue
		}
		limits[p] = n
	}
	return Quota{limits: limits, contact: contact}
}

// Limit returns the participant limit for p.
func (q Quota) Limit(p Plan) int {
	if n, ok := q.limits[p]; ok {
		return n
	}
	return q.limits[Free]
}

// Check rejects a participant list of size count when it exceeds the limit.
func (q Quota) Check(p Plan, count int) error {
	limit := q.Limit(p)
	if count > limit {
		return &QuotaExceededError{Plan: p, Requested: count, Limit: limit, Contact: q.contact}
	}
	return nil
}

// CanAdd rejects adding one participant to a draft that already holds current.
func (q Quota) CanAdd(p Plan, current int) error {
	return q.Check(p, current+1)
}

// QuotaExceededError is the structured rejection carrying an upgrade path.
type QuotaExceededError struct {
	Plan      Plan
	Requested int
	Limit     int
	Contact   Contact
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("participant limit exceeded: the %s plan allows %d participants, got %d",
		strings.ToLower(string(e.Plan)), e.Limit, e.Requested)
}

// ContactInfo renders the upgrade path as a single line.
func (e *QuotaExceededError) ContactInfo() string {
	switch {
	case e.Contact.Email != "" && e.Contact.URL != "":
		return fmt.Sprintf("Contact %s or visit %s to upgrade your plan.", e.Contact.Email, e.Contact.URL)
	case e.Contact.Email != "":
		return fmt.Sprintf("Contact %s to upgrade your plan.", e.Contact.Email)
	case e.Contact.URL != "":
		return fmt.Sprintf("Visit %s to upgrade your plan.", e.Contact.URL)
	default:
		return "Contact sales to upgrade your plan."
	}
}
