// Package plan defines subscription tiers, their prices and the participant
// limits derived from them. It is the single source of truth for every
// quota check in the service.
package plan

import (
	"fmt"
	"strings"

	"github.com/Strob0t/Studio/internal/domain"
)

// Plan is a named tier controlling feature limits.
type Plan string

const (
	Free         Plan = "free"
	Starter      Plan = "starter"
	Professional Plan = "professional"
	Enterprise   Plan = "enterprise"
)

// All lists the tiers in ascending order.
var All = []Plan{Free, Starter, Professional, Enterprise}

// Parse normalizes a plan name. The legacy "pro" spelling maps to Professional.
func Parse(s string) (Plan, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return Free, nil
	case "starter":
		return Starter, nil
	case "professional", "pro":
		return Professional, nil
	case "enterprise":
		return Enterprise, nil
	}
	return "", domain.Validationf("unknown plan %q", s)
}

// Orderable reports whether the plan can be purchased.
func (p Plan) Orderable() bool {
	return p == Starter || p == Professional || p == Enterprise
}

// Cycle is the billing period of a subscription.
type Cycle string

const (
	Monthly Cycle = "monthly"
	Yearly  Cycle = "yearly"
)

// ParseCycle validates a billing cycle.
func ParseCycle(s string) (Cycle, error) {
	switch Cycle(strings.ToLower(strings.TrimSpace(s))) {
	case Monthly:
		return Monthly, nil
	case Yearly:
		return Yearly, nil
	}
	return "", domain.Validationf("unknown billing cycle %q", s)
}

// PeriodDays is the length of one billing period.
func (c Cycle) PeriodDays() int {
	if c == Yearly {
		return 365
	}
	return 30
}

// prices in minor currency units, indexed by plan and cycle.
var prices = map[Plan]map[Cycle]int64{
	Starter:      {Monthly: 99900, Yearly: 999000},
	Professional: {Monthly: 249900, Yearly: 2499000},
	Enterprise:   {Monthly: 499900, Yearly: 4999000},
}

// Price returns the fixed amount for plan and cycle in minor units.
func Price(p Plan, c Cycle) (int64, error) {
	byCycle, ok := prices[p]
	if !ok {
		return 0, domain.Validationf("plan %q cannot be ordered", p)
	}
	amount, ok := byCycle[c]
	if !ok {
		return 0, domain.Validationf("unknown billing cycle %q", c)
	}
	return amount, nil
}

// Listing is the public description of one tier.
type Listing struct {
	Plan              Plan  `json:"plan"`
	ParticipantLimit  int   `json:"participant_limit"`
	MonthlyPriceMinor int64 `json:"monthly_price_minor,omitempty"`
	YearlyPriceMinor  int64 `json:"yearly_price_minor,omitempty"`
}

// Catalog describes every tier with the limits of q.
func Catalog(q Quota) []Listing {
	out := make([]Listing, 0, len(All))
	for _, p := range All {
		l := Listing{Plan: p, ParticipantLimit: q.Limit(p)}
		if byCycle, ok := prices[p]; ok {
			l.MonthlyPriceMinor = byCycle[Monthly]
			l.YearlyPriceMinor = byCycle[Yearly]
		}
		out = append(out, l)
	}
	return out
}

func (p Plan) String() string { return string(p) }

// Label is the human form used in notifications.
func (p Plan) Label() string {
	if p == "" {
		return ""
	}
	return fmt.Sprintf("%s%s", strings.ToUpper(string(p[:1])), p[1:])
}
