package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	studiootel "github.com/Strob0t/Studio/internal/adapter/otel"
	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/port/cache"
	"github.com/Strob0t/Studio/internal/port/database"
)

// QuotaService resolves a tenant's plan and applies the shared quota table.
type QuotaService struct {
	tenants database.TenantStore
	cache   cache.Cache
	quota   plan.Quota
	ttl     time.Duration
	metrics *studiootel.Metrics
}

// NewQuotaService creates a QuotaService. c may be nil to always read the store.
func NewQuotaService(tenants database.TenantStore, c cache.Cache, q plan.Quota, ttl time.Duration) *QuotaService {
	return &QuotaService{tenants: tenants, cache: c, quota: q, ttl: ttl}
}

// SetMetrics enables quota rejection counting.
func (s *QuotaService) SetMetrics(m *studiootel.Metrics) { s.metrics = m }

// Quota returns the limit table used for every check.
func (s *QuotaService) Quota() plan.Quota { return s.quota }

// TenantPlan returns the stored plan of tenantID, served from cache when possible.
func (s *QuotaService) TenantPlan(ctx context.Context, tenantID string) (plan.Plan, error) {
	key := cache.TenantPlanKey(tenantID)
	if s.cache != nil {
		p, ok, err := cache.GetJSON[plan.Plan](ctx, s.cache, key)
		if err != nil {
			logger.With(ctx).Warn("plan cache read failed", slog.Any("error", err))
		}
		if ok {
			return p, nil
		}
	}

	t, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("resolve plan for tenant %s: %w", tenantID, err)
	}
	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, t.Plan, s.ttl); err != nil {
			logger.With(ctx).Warn("plan cache write failed", slog.Any("error", err))
		}
	}
	return t.Plan, nil
}

// InvalidatePlan drops the cached plan after a plan change.
func (s *QuotaService) InvalidatePlan(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.TenantPlanKey(tenantID)); err != nil {
		logger.With(ctx).Warn("plan cache invalidation failed",
			slog.String("tenant_id", tenantID), slog.Any("error", err))
	}
}

// Usage describes the participant allowance of the current tenant.
type Usage struct {
	Plan    plan.Plan `json:"plan"`
	Limit   int       `json:"limit"`
	Current int       `json:"current"`
	Allowed bool      `json:"allowed"`
}

// CheckParticipants rejects a participant list of size count for the
// tenant in ctx with a *plan.QuotaExceededError.
func (s *QuotaService) CheckParticipants(ctx context.Context, count int) error {
	p, err := s.currentPlan(ctx)
	if err != nil {
		return err
	}
	return s.check(ctx, p, count)
}

// CheckAdd reports whether one more participant fits a draft holding current.
func (s *QuotaService) CheckAdd(ctx context.Context, current int) (Usage, error) {
	if current < 0 {
		return Usage{}, domain.Validationf("current must not be negative")
	}
	p, err := s.currentPlan(ctx)
	if err != nil {
		return Usage{}, err
	}
	u := Usage{Plan: p, Limit: s.quota.Limit(p), Current: current, Allowed: true}
	if err := s.quota.CanAdd(p, current); err != nil {
		s.recordRejection(ctx, p, err)
		u.Allowed = false
		return u, err
	}
	return u, nil
}

func (s *QuotaService) check(ctx context.Context, p plan.Plan, count int) error {
	err := s.quota.Check(p, count)
	s.recordRejection(ctx, p, err)
	return err
}

func (s *QuotaService) recordRejection(ctx context.Context, p plan.Plan, err error) {
	var qe *plan.QuotaExceededError
	if errors.As(err, &qe) {
		s.metrics.QuotaRejected(ctx, string(p))
		logger.With(ctx).Info("participant quota exceeded",
			slog.String("plan", string(p)), slog.Int("requested", qe.Requested), slog.Int("limit", qe.Limit))
	}
}

func (s *QuotaService) currentPlan(ctx context.Context) (plan.Plan, error) {
	tid := middleware.TenantIDFromContext(ctx)
	if tid == "" {
		return "", domain.ErrUnauthorized
	}
	return s.TenantPlan(ctx, tid)
}
