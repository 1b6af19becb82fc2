package http_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/meeting"
	"github.com/Strob0t/Studio/internal/domain/notification"
	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/domain/subscription"
	"github.com/Strob0t/Studio/internal/domain/tenant"
	"github.com/Strob0t/Studio/internal/domain/user"
	"github.com/Strob0t/Studio/internal/domain/webhook"
	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/port/database"
)

var errUnreachable = errors.New("connection refused")

// mockStore implements database.Store for testing. Rows are scoped by the
// tenant in ctx, like the postgres store.
type mockStore struct {
	mu            sync.Mutex
	tenants       map[string]*tenant.Tenant
	roles         map[string]user.Role
	subs          []*subscription.Subscription
	payments      []subscription.PaymentHistory
	meetings      map[string]*meeting.Meeting
	notifications []*notification.Notification
	receipts      map[string]bool
	pingErr       error
}

var _ database.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		tenants: map[string]*tenant.Tenant{
			tenantA: {ID: tenantA, Name: "Acme", Slug: "acme", Plan: plan.Free},
			tenantB: {ID: tenantB, Name: "Beta", Slug: "beta", Plan: plan.Professional},
		},
		roles:    make(map[string]user.Role),
		meetings: make(map[string]*meeting.Meeting),
		receipts: make(map[string]bool),
	}
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &tenant.Tenant{ID: uuid.NewString(), Name: req.Name, Slug: req.Slug, Plan: req.Plan, CreatedAt: time.Now().UTC()}
	m.tenants[t.ID] = t
	cp := *t
	return &cp, nil
}

func (m *mockStore) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockStore) ListTenants(context.Context) ([]tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tenant.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockStore) UpdateTenantPlan(_ context.Context, id string, p plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Plan = p
	return nil
}

func (m *mockStore) GetUserRole(_ context.Context, userID string) (user.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return r, nil
}

func (m *mockStore) UpsertPendingSubscription(ctx context.Context, s *subscription.Subscription) (*subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *s
	row.ID = uuid.NewString()
	row.TenantID = middleware.TenantIDFromContext(ctx)
	row.Status = subscription.StatusPending
	row.CreatedAt = time.Now().UTC()
	row.UpdatedAt = row.CreatedAt
	m.subs = append(m.subs, &row)
	cp := row
	return &cp, nil
}

func (m *mockStore) ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []subscription.Subscription
	for _, s := range m.subs {
		if s.TenantID == middleware.TenantIDFromContext(ctx) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockStore) ListPaymentHistory(ctx context.Context) ([]subscription.PaymentHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []subscription.PaymentHistory
	for _, p := range m.payments {
		if p.TenantID == middleware.TenantIDFromContext(ctx) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) CreateMeeting(ctx context.Context, mt *meeting.Meeting) (*meeting.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *mt
	row.ID = uuid.NewString()
	row.TenantID = middleware.TenantIDFromContext(ctx)
	row.CreatedAt = time.Now().UTC()
	row.UpdatedAt = row.CreatedAt
	m.meetings[row.ID] = &row
	cp := row
	return &cp, nil
}

func (m *mockStore) GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.meetings[id]
	if !ok || mt.TenantID != middleware.TenantIDFromContext(ctx) {
		return nil, domain.ErrNotFound
	}
	cp := *mt
	return &cp, nil
}

func (m *mockStore) ListMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []meeting.Meeting
	for _, mt := range m.meetings {
		if mt.TenantID == middleware.TenantIDFromContext(ctx) {
			out = append(out, *mt)
		}
	}
	meeting.Sort(out)
	return out, nil
}

func (m *mockStore) UpdateMeeting(ctx context.Context, mt *meeting.Meeting, expected time.Time) (*meeting.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.meetings[mt.ID]
	if !ok || cur.TenantID != middleware.TenantIDFromContext(ctx) {
		return nil, domain.ErrNotFound
	}
	if !cur.UpdatedAt.Equal(expected) {
		return nil, domain.ErrConflict
	}
	row := *mt
	row.TenantID = cur.TenantID
	row.UpdatedAt = cur.UpdatedAt.Add(time.Second)
	m.meetings[mt.ID] = &row
	cp := row
	return &cp, nil
}

func (m *mockStore) DeleteMeeting(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.meetings[id]
	if !ok || mt.TenantID != middleware.TenantIDFromContext(ctx) {
		return domain.ErrNotFound
	}
	delete(m.meetings, id)
	return nil
}

func (m *mockStore) CreateNotification(ctx context.Context, n *notification.Notification) (*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := *n
	row.ID = uuid.NewString()
	row.TenantID = middleware.TenantIDFromContext(ctx)
	row.CreatedAt = time.Now().UTC()
	m.notifications = append(m.notifications, &row)
	cp := row
	return &cp, nil
}

func (m *mockStore) visible(ctx context.Context, n *notification.Notification, userID string) bool {
	return n.TenantID == middleware.TenantIDFromContext(ctx) && (n.UserID == "" || n.UserID == userID)
}

func (m *mockStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notification.Notification
	for _, n := range m.notifications {
		if !m.visible(ctx, n, userID) || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, *n)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == id && m.visible(ctx, n, userID) {
			n.Read = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.notifications {
		if m.visible(ctx, n, userID) && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (m *mockStore) DeleteNotification(ctx context.Context, id, userID string, includeShared bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == id && n.TenantID == middleware.TenantIDFromContext(ctx) && (n.UserID == userID || (includeShared && n.UserID == "")) {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) ApplyPaymentEvent(_ context.Context, receipt webhook.Receipt, match database.SubscriptionMatch, fn database.ApplyFunc) (database.Mutation, webhook.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := receipt.Provider + "/" + receipt.EventID
	if m.receipts[key] {
		return database.Mutation{}, webhook.OutcomeDuplicate, domain.ErrDuplicate
	}

	var cur *subscription.Subscription
	for _, s := range m.subs {
		if s.ProviderOrderID == match.OrderID ||
			(match.ProviderSubscriptionID != "" && s.ProviderSubscriptionID == match.ProviderSubscriptionID) {
			cp := *s
			cur = &cp
		}
	}

	mut, outcome, err := fn(cur)
	if err != nil {
		return database.Mutation{}, outcome, err
	}
	if mut.Subscription != nil {
		for i, s := range m.subs {
			if s.ID == mut.Subscription.ID {
				row := *mut.Subscription
				m.subs[i] = &row
			}
		}
	}
	if mut.TenantPlan != "" && cur != nil {
		m.tenants[cur.TenantID].Plan = mut.TenantPlan
	}
	if mut.Payment != nil {
		m.payments = append(m.payments, *mut.Payment)
	}
	if n := mut.Notification; n != nil {
		n.ID = uuid.NewString()
		row := *n
		m.notifications = append(m.notifications, &row)
	}
	m.receipts[key] = true
	return mut, outcome, nil
}

func (m *mockStore) PurgeWebhookEvents(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *mockStore) tenantPlan(id string) plan.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tenants[id].Plan
}

func (m *mockStore) subscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *mockStore) meetingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.meetings)
}
