package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
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
	"github.com/Strob0t/Studio/internal/port/cache"
	"github.com/Strob0t/Studio/internal/port/database"
	"github.com/Strob0t/Studio/internal/port/messagequeue"
	"github.com/Strob0t/Studio/internal/port/notifier"
	"github.com/Strob0t/Studio/internal/port/payment"
	"github.com/Strob0t/Studio/internal/port/sms"
)

const (
	tenantA = "tenant-a"
	tenantB = "tenant-b"
)

var testHost = &user.User{ID: "user-1", Email: "host@example.com", Name: "Grace Host", Role: user.RoleAdmin, TenantID: tenantA}

func tenantCtx(tenantID string, u *user.User) context.Context {
	ctx := middleware.WithTenant(context.Background(), tenantID)
	if u != nil {
		ctx = middleware.WithUser(ctx, u)
	}
	return ctx
}

// fakeStore is an in-memory database.Store honouring tenant scoping.
type fakeStore struct {
	mu            sync.Mutex
	tenants       map[string]*tenant.Tenant
	tenantReads   int
	subs          []*subscription.Subscription
	payments      []subscription.PaymentHistory
	meetings      map[string]*meeting.Meeting
	notifications []*notification.Notification
	sharedReads   map[string]map[string]bool // notification id -> user ids
	receipts      map[string]webhook.Receipt
	clock         time.Time
}

var _ database.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	s := &fakeStore{
		tenants:     make(map[string]*tenant.Tenant),
		meetings:    make(map[string]*meeting.Meeting),
		sharedReads: make(map[string]map[string]bool),
		receipts:    make(map[string]webhook.Receipt),
		clock:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	s.tenants[tenantA] = &tenant.Tenant{ID: tenantA, Name: "Acme", Slug: "acme", Plan: plan.Free}
	s.tenants[tenantB] = &tenant.Tenant{ID: tenantB, Name: "Beta", Slug: "beta", Plan: plan.Professional}
	return s
}

// tick must be called with s.mu held.
func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Slug == req.Slug {
			return nil, domain.ErrConflict
		}
	}
	t := &tenant.Tenant{ID: uuid.NewString(), Name: req.Name, Slug: req.Slug, Plan: req.Plan, CreatedAt: s.tick()}
	s.tenants[t.ID] = t
	cp := *t
	return &cp, nil
}

func (s *fakeStore) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantReads++
	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant %s: %w", id, domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *fakeStore) ListTenants(context.Context) ([]tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) UpdateTenantPlan(_ context.Context, id string, p plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Plan = p
	return nil
}

func (s *fakeStore) GetUserRole(context.Context, string) (user.Role, error) {
	return "", domain.ErrNotFound
}

func (s *fakeStore) UpsertPendingSubscription(ctx context.Context, sub *subscription.Subscription) (*subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tid := middleware.TenantIDFromContext(ctx)
	for _, cur := range s.subs {
		if cur.ProviderOrderID != sub.ProviderOrderID {
			continue
		}
		if cur.Status != subscription.StatusPending || cur.TenantID != tid {
			return nil, domain.ErrConflict
		}
		cur.Plan, cur.Cycle, cur.AmountMinor, cur.Currency = sub.Plan, sub.Cycle, sub.AmountMinor, sub.Currency
		cp := *cur
		return &cp, nil
	}
	row := *sub
	row.ID = uuid.NewString()
	row.TenantID = tid
	row.Status = subscription.StatusPending
	row.CreatedAt = s.tick()
	row.UpdatedAt = row.CreatedAt
	s.subs = append(s.subs, &row)
	cp := row
	return &cp, nil
}

func (s *fakeStore) ListSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []subscription.Subscription
	for _, sub := range s.subs {
		if sub.TenantID == middleware.TenantIDFromContext(ctx) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPaymentHistory(ctx context.Context) ([]subscription.PaymentHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []subscription.PaymentHistory
	for _, p := range s.payments {
		if p.TenantID == middleware.TenantIDFromContext(ctx) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) subscriptionByOrder(orderID string) *subscription.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.ProviderOrderID == orderID {
			cp := *sub
			return &cp
		}
	}
	return nil
}

func (s *fakeStore) CreateMeeting(ctx context.Context, m *meeting.Meeting) (*meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.meetings {
		if cur.Code == m.Code {
			return nil, domain.ErrConflict
		}
	}
	row := *m
	row.ID = uuid.NewString()
	row.TenantID = middleware.TenantIDFromContext(ctx)
	row.CreatedAt = s.tick()
	row.UpdatedAt = row.CreatedAt
	s.meetings[row.ID] = &row
	cp := row
	return &cp, nil
}

func (s *fakeStore) GetMeeting(ctx context.Context, id string) (*meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok || m.TenantID != middleware.TenantIDFromContext(ctx) {
		return nil, fmt.Errorf("meeting %s: %w", id, domain.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *fakeStore) ListMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []meeting.Meeting
	for _, m := range s.meetings {
		if m.TenantID == middleware.TenantIDFromContext(ctx) {
			out = append(out, *m)
		}
	}
	meeting.Sort(out)
	return out, nil
}

func (s *fakeStore) UpdateMeeting(ctx context.Context, m *meeting.Meeting, expected time.Time) (*meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.meetings[m.ID]
	if !ok || cur.TenantID != middleware.TenantIDFromContext(ctx) {
		return nil, domain.ErrNotFound
	}
	if !cur.UpdatedAt.Equal(expected) {
		return nil, domain.ErrConflict
	}
	row := *m
	row.TenantID = cur.TenantID
	row.UpdatedAt = s.tick()
	s.meetings[m.ID] = &row
	cp := row
	return &cp, nil
}

func (s *fakeStore) DeleteMeeting(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok || m.TenantID != middleware.TenantIDFromContext(ctx) {
		return domain.ErrNotFound
	}
	delete(s.meetings, id)
	return nil
}

func (s *fakeStore) CreateNotification(ctx context.Context, n *notification.Notification) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *n
	row.ID = uuid.NewString()
	row.TenantID = middleware.TenantIDFromContext(ctx)
	row.CreatedAt = s.tick()
	s.notifications = append(s.notifications, &row)
	cp := row
	return &cp, nil
}

func (s *fakeStore) visible(ctx context.Context, n *notification.Notification, userID string) bool {
	return n.TenantID == middleware.TenantIDFromContext(ctx) && (n.UserID == "" || n.UserID == userID)
}

// readBy reports the read state userID sees for n. Callers hold s.mu.
func (s *fakeStore) readBy(n *notification.Notification, userID string) bool {
	if n.UserID == "" {
		return s.sharedReads[n.ID][userID]
	}
	return n.Read
}

func (s *fakeStore) markRead(n *notification.Notification, userID string) bool {
	if s.readBy(n, userID) {
		return false
	}
	if n.UserID != "" {
		n.Read = true
		return true
	}
	if s.sharedReads[n.ID] == nil {
		s.sharedReads[n.ID] = make(map[string]bool)
	}
	s.sharedReads[n.ID][userID] = true
	return true
}

func (s *fakeStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		read := s.readBy(n, userID)
		if !s.visible(ctx, n, userID) || (unreadOnly && read) {
			continue
		}
		row := *n
		row.Read = read
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id && s.visible(ctx, n, userID) {
			s.markRead(n, userID)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.notifications {
		if s.visible(ctx, row, userID) && s.markRead(row, userID) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) DeleteNotification(ctx context.Context, id, userID string, includeShared bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.ID != id || n.TenantID != middleware.TenantIDFromContext(ctx) {
			continue
		}
		if (n.UserID != "" && n.UserID == userID) || (includeShared && n.UserID == "") {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			delete(s.sharedReads, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *fakeStore) notificationsFor(tenantID string) []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Notification
	for _, n := range s.notifications {
		if n.TenantID == tenantID {
			out = append(out, *n)
		}
	}
	return out
}

// ApplyPaymentEvent serializes all events, mirroring the row lock.
func (s *fakeStore) ApplyPaymentEvent(_ context.Context, receipt webhook.Receipt, match database.SubscriptionMatch, fn database.ApplyFunc) (database.Mutation, webhook.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := receipt.Provider + "/" + receipt.EventID
	if _, ok := s.receipts[key]; ok {
		return database.Mutation{}, webhook.OutcomeDuplicate, domain.ErrDuplicate
	}

	var cur *subscription.Subscription
	for i := len(s.subs) - 1; i >= 0; i-- {
		sub := s.subs[i]
		if (match.OrderID != "" && sub.ProviderOrderID == match.OrderID) ||
			(match.ProviderSubscriptionID != "" && sub.ProviderSubscriptionID == match.ProviderSubscriptionID) {
			cp := *sub
			cur = &cp
			break
		}
	}

	mut, outcome, err := fn(cur)
	if err != nil {
		return database.Mutation{}, outcome, err
	}
	if mut.Subscription != nil {
		for i, sub := range s.subs {
			if sub.ID == mut.Subscription.ID {
				row := *mut.Subscription
				s.subs[i] = &row
			}
		}
	}
	if mut.TenantPlan != "" && cur != nil {
		s.tenants[cur.TenantID].Plan = mut.TenantPlan
	}
	if p := mut.Payment; p != nil {
		dup := false
		for _, existing := range s.payments {
			if existing.ProviderPaymentID == p.ProviderPaymentID && existing.Status == p.Status {
				dup = true
			}
		}
		if !dup {
			p.ID = uuid.NewString()
			s.payments = append(s.payments, *p)
		}
	}
	if n := mut.Notification; n != nil {
		n.ID = uuid.NewString()
		n.CreatedAt = s.tick()
		row := *n
		s.notifications = append(s.notifications, &row)
	}
	receipt.Outcome = outcome
	s.receipts[key] = receipt
	return mut, outcome, nil
}

func (s *fakeStore) PurgeWebhookEvents(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, r := range s.receipts {
		if r.ReceivedAt.Before(olderThan) {
			delete(s.receipts, k)
			n++
		}
	}
	return n, nil
}

// memCache is an in-memory cache.Cache ignoring TTLs.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	deletes int
}

var _ cache.Cache = (*memCache)(nil)

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes++
	return nil
}

type broadcastCall struct {
	TenantID string
	Event    string
	Payload  any
}

// recordingHub captures broadcasts.
type recordingHub struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (h *recordingHub) BroadcastToTenant(_ context.Context, tenantID, eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, broadcastCall{TenantID: tenantID, Event: eventType, Payload: payload})
}

func (h *recordingHub) events(event string) []broadcastCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []broadcastCall
	for _, c := range h.calls {
		if c.Event == event {
			out = append(out, c)
		}
	}
	return out
}

type published struct {
	Subject string
	Data    []byte
}

// fakeQueue delivers published messages synchronously to matching
// subscribers. With deferred set, messages are held until deliver is called,
// the way JetStream hands them back some time after Publish returns.
type fakeQueue struct {
	mu          sync.Mutex
	connected   bool
	deferred    bool
	pending     []published
	published   []published
	subs        map[int]subscriber
	nextSub     int
	reconnectFn []func()
}

type subscriber struct {
	pattern string
	handler messagequeue.Handler
}

var _ messagequeue.Queue = (*fakeQueue)(nil)

func newFakeQueue() *fakeQueue { return &fakeQueue{connected: true, subs: make(map[int]subscriber)} }

func matches(pattern, subject string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ".>"); ok {
		return strings.HasPrefix(subject, prefix+".")
	}
	return pattern == subject
}

func (q *fakeQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	q.published = append(q.published, published{Subject: subject, Data: data})
	if q.deferred {
		q.pending = append(q.pending, published{Subject: subject, Data: data})
		q.mu.Unlock()
		return nil
	}
	var handlers []messagequeue.Handler
	for _, s := range q.subs {
		if matches(s.pattern, subject) {
			handlers = append(handlers, s.handler)
		}
	}
	q.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, subject, data); err != nil {
			return err
		}
	}
	return nil
}

// deliver hands every held message to the matching subscribers.
func (q *fakeQueue) deliver(ctx context.Context) {
	q.mu.Lock()
	msgs := q.pending
	q.pending = nil
	var subs []subscriber
	for _, s := range q.subs {
		subs = append(subs, s)
	}
	q.mu.Unlock()

	for _, m := range msgs {
		for _, s := range subs {
			if matches(s.pattern, m.Subject) {
				_ = s.handler(ctx, m.Subject, m.Data)
			}
		}
	}
}

func (q *fakeQueue) Subscribe(_ context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = subscriber{pattern: subject, handler: handler}
	return func() {
		q.mu.Lock()
		delete(q.subs, id)
		q.mu.Unlock()
	}, nil
}

func (q *fakeQueue) OnReconnect(fn func()) {
	q.mu.Lock()
	q.reconnectFn = append(q.reconnectFn, fn)
	q.mu.Unlock()
}

func (q *fakeQueue) reconnect() {
	q.mu.Lock()
	fns := append([]func(){}, q.reconnectFn...)
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (q *fakeQueue) subjects(prefix string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, p := range q.published {
		if strings.HasPrefix(p.Subject, prefix) {
			out = append(out, p.Subject)
		}
	}
	return out
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return q.connected }

// fakeGateway records orders.
type fakeGateway struct {
	mu    sync.Mutex
	calls []payment.OrderInput
	err   error
}

func (g *fakeGateway) CreateOrder(_ context.Context, in payment.OrderInput) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, in)
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Order{
		ID:          fmt.Sprintf("order_%d", len(g.calls)),
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		Receipt:     in.Receipt,
		Status:      "created",
		Notes:       in.Notes,
	}, nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// fakeMail records sends and fails for addresses in failFor.
type fakeMail struct {
	mu       sync.Mutex
	sent     []notifier.Message
	failFor  map[string]bool
	inFlight int
	maxSeen  int
	delay    time.Duration
}

func (m *fakeMail) Name() string { return "fake" }
func (m *fakeMail) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{HTML: true, Attachments: true}
}

func (m *fakeMail) Send(_ context.Context, msg notifier.Message) (string, error) {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	m.sent = append(m.sent, msg)
	if m.failFor[msg.To] {
		return "", &domain.UpstreamError{Provider: "fake", StatusCode: 422, Message: "invalid recipient"}
	}
	return "msg-" + msg.To, nil
}

func (m *fakeMail) attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// fakeSMS records intents.
type fakeSMS struct {
	mu   sync.Mutex
	sent []sms.Message
}

func (f *fakeSMS) Name() string { return "fake" }

func (f *fakeSMS) Send(_ context.Context, msg sms.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return DeliveryLogged, nil
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
