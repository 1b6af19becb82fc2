// Package tenant defines the tenant domain model for multi-tenancy.
package tenant

import (
	"errors"
	"regexp"
	"time"

	"github.com/Strob0t/Studio/internal/domain/plan"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?$`)

// Tenant represents an isolated customer organization and its current plan.
type Tenant struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Plan        plan.Plan  `json:"plan"`
	TrialEndsAt *time.Time `json:"trial_ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateRequest holds the fields required to create a new tenant.
type CreateRequest struct {
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Plan      plan.Plan `json:"plan,omitempty"`
	TrialDays int       `json:"trial_days,omitempty"`
}

// Validate checks the request and defaults an empty plan to free.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if !slugPattern.MatchString(r.Slug) {
		return errors.New("slug must be lowercase alphanumeric with dashes")
	}
	if r.Plan == "" {
		r.Plan = plan.Free
	}
	p, err := plan.Parse(string(r.Plan))
	if err != nil {
		return err
	}
	r.Plan = p
	if r.TrialDays < 0 {
		return errors.New("trial_days must not be negative")
	}
	return nil
}

// PlanUpdate is the admin request to change a tenant's plan.
type PlanUpdate struct {
	Plan string `json:"plan"`
}
