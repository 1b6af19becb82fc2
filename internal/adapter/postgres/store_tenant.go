package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/domain/tenant"
	"github.com/Strob0t/Studio/internal/domain/user"
)

const tenantColumns = `id, name, slug, plan, trial_ends_at, created_at, updated_at`

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Plan, &t.TrialEndsAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// --- Tenant CRUD ---

func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	var trialEnds *time.Time
	if req.TrialDays > 0 {
		end := time.Now().UTC().AddDate(0, 0, req.TrialDays)
		trialEnds = &end
	}

	t, err := scanTenant(s.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, slug, plan, trial_ends_at) VALUES ($1, $2, $3, $4)
		 RETURNING `+tenantColumns,
		req.Name, req.Slug, req.Plan, nullTime(trialEnds)))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create tenant %s: %w", req.Slug, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return &t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %s", id)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return orEmpty(tenants), rows.Err()
}

func (s *Store) UpdateTenantPlan(ctx context.Context, id string, p plan.Plan) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET plan = $2, updated_at = now() WHERE id = $1`, id, p)
	return execExpectOne(tag, err, "update tenant plan %s", id)
}

// --- Roles ---

func (s *Store) GetUserRole(ctx context.Context, userID string) (user.Role, error) {
	var role user.Role
	err := s.pool.QueryRow(ctx,
		`SELECT role FROM user_roles WHERE tenant_id = $1 AND user_id = $2`,
		tenantFromCtx(ctx), userID,
	).Scan(&role)
	if err != nil {
		return "", notFoundWrap(err, "get role %s", userID)
	}
	return role, nil
}
