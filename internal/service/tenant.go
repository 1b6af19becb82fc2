package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/notification"
	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/domain/tenant"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/port/database"
)

// TenantService manages tenant lifecycle.
type TenantService struct {
	store         database.TenantStore
	quota         *QuotaService
	notifications *NotificationService
}

// NewTenantService creates a new TenantService. quota and notifications may be nil.
func NewTenantService(store database.TenantStore, quota *QuotaService, notifications *NotificationService) *TenantService {
	return &TenantService{store: store, quota: quota, notifications: notifications}
}

// Create validates and creates a new tenant.
func (s *TenantService) Create(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	if err := req.Validate(); err != nil {
		return nil, domain.Validationf("%v", err)
	}
	return s.store.CreateTenant(ctx, req)
}

// Get returns a tenant by ID.
func (s *TenantService) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.store.GetTenant(ctx, id)
}

// Current returns the tenant carried by ctx.
func (s *TenantService) Current(ctx context.Context) (*tenant.Tenant, error) {
	tid := middleware.TenantIDFromContext(ctx)
	if tid == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.store.GetTenant(ctx, tid)
}

// List returns all tenants.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// UpdatePlan is the administrative plan change. Paid plans normally change
// through payment webhooks.
func (s *TenantService) UpdatePlan(ctx context.Context, id, planName string) (*tenant.Tenant, error) {
	p, err := plan.Parse(planName)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateTenantPlan(ctx, id, p); err != nil {
		return nil, fmt.Errorf("update plan of tenant %s: %w", id, err)
	}
	if s.quota != nil {
		s.quota.InvalidatePlan(ctx, id)
	}
	logger.With(ctx).Info("tenant plan updated", slog.String("tenant_id", id), slog.String("plan", string(p)))

	if s.notifications != nil {
		tctx := middleware.WithTenant(ctx, id)
		if _, err := s.notifications.Create(tctx, notification.CreateRequest{
			Type:    notification.TypeSystem,
			Title:   "Plan updated",
			Message: fmt.Sprintf("Your workspace is now on the %s plan.", p.Label()),
			Data:    map[string]any{"plan": string(p)},
		}); err != nil {
			logger.With(ctx).Warn("plan change notification failed", slog.Any("error", err))
		}
	}
	return s.store.GetTenant(ctx, id)
}
