package http

import (
	"net/http"

	"github.com/Strob0t/Studio/internal/domain/tenant"
	"github.com/Strob0t/Studio/internal/middleware"
)

// GetCurrentTenant handles GET /api/v1/tenant
func (h *Handlers) GetCurrentTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tenants.Current(r.Context())
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTenantPlan handles PUT /api/v1/tenant/plan
func (h *Handlers) UpdateTenantPlan(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.PlanUpdate](w, r, h.bodyLimit())
	if !ok {
		return
	}
	if !requireField(w, req.Plan, "plan") {
		return
	}
	t, err := h.Tenants.UpdatePlan(r.Context(), middleware.TenantIDFromContext(r.Context()), req.Plan)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}
