package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/Studio/internal/domain/meeting"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/port/broadcast"
	"github.com/Strob0t/Studio/internal/port/cache"
	"github.com/Strob0t/Studio/internal/port/messagequeue"
)

// MeetingFeed keeps cached tenant meeting lists in step with the change
// subject and pushes each change to the tenant's websocket clients.
type MeetingFeed struct {
	cache cache.Cache
	hub   broadcast.Broadcaster
	queue messagequeue.Queue
	ttl   time.Duration
	// origin identifies this instance on the change subject.
	origin string

	mu sync.Mutex
	// gen counts changes applied per tenant so a list read from the store
	// before a change is never cached after it.
	gen map[string]uint64
}

// NewMeetingFeed creates a MeetingFeed. c, hub and queue may each be nil.
func NewMeetingFeed(c cache.Cache, hub broadcast.Broadcaster, queue messagequeue.Queue, ttl time.Duration) *MeetingFeed {
	return &MeetingFeed{
		cache:  c,
		hub:    hub,
		queue:  queue,
		ttl:    ttl,
		origin: uuid.NewString(),
		gen:    make(map[string]uint64),
	}
}

// Start consumes meeting changes for all tenants and resyncs clients after
// a queue reconnect. The returned function stops consumption.
func (f *MeetingFeed) Start(ctx context.Context) (func(), error) {
	if f.queue == nil {
		return func() {}, nil
	}
	f.queue.OnReconnect(func() { f.Resync(context.Background(), "reconnect") })

	cancel, err := f.queue.Subscribe(ctx, messagequeue.SubjectMeetingChanged+".>", f.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe meeting changes: %w", err)
	}
	return cancel, nil
}

// Publish applies c to this instance before returning, so a List right
// after a write sees it, then sends it to the other instances. The copy
// that comes back on the subject is skipped.
func (f *MeetingFeed) Publish(ctx context.Context, c meeting.Change) {
	c.Origin = f.origin
	f.Apply(ctx, c)

	if f.queue == nil || !f.queue.IsConnected() {
		return
	}
	data, err := json.Marshal(c)
	if err == nil {
		subject := messagequeue.TenantSubject(messagequeue.SubjectMeetingChanged, c.TenantID)
		err = f.queue.Publish(ctx, subject, data)
	}
	if err != nil {
		logger.With(ctx).Warn("publish meeting change failed, other instances resync on expiry",
			slog.String("meeting_id", c.MeetingID), slog.Any("error", err))
	}
}

func (f *MeetingFeed) handle(ctx context.Context, _ string, data []byte) error {
	var c meeting.Change
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("decode meeting change: %w", err)
	}
	if c.Origin == f.origin {
		return nil
	}
	f.Apply(ctx, c)
	return nil
}

// Apply patches the cached list of c's tenant, if any, and broadcasts c.
// Applying the same change twice leaves the cache unchanged.
func (f *MeetingFeed) Apply(ctx context.Context, c meeting.Change) {
	f.mu.Lock()
	f.gen[c.TenantID]++
	f.mu.Unlock()

	if f.cache != nil {
		key := cache.MeetingListKey(c.TenantID)
		list, ok, err := cache.GetJSON[[]meeting.Meeting](ctx, f.cache, key)
		switch {
		case err != nil:
			f.drop(ctx, c.TenantID)
		case ok:
			if err := cache.SetJSON(ctx, f.cache, key, meeting.Apply(list, c), f.ttl); err != nil {
				f.drop(ctx, c.TenantID)
			}
		}
	}

	if f.hub != nil {
		f.hub.BroadcastToTenant(ctx, c.TenantID, broadcast.EventMeetingChanged, c)
	}
}

// Cached returns the cached list for tenantID and the generation it was
// looked up at, to be handed back to Store.
func (f *MeetingFeed) Cached(ctx context.Context, tenantID string) ([]meeting.Meeting, uint64, bool) {
	f.mu.Lock()
	g := f.gen[tenantID]
	f.mu.Unlock()

	if f.cache == nil {
		return nil, g, false
	}
	list, ok, err := cache.GetJSON[[]meeting.Meeting](ctx, f.cache, cache.MeetingListKey(tenantID))
	if err != nil || !ok {
		return nil, g, false
	}
	return list, g, true
}

// Store caches a list fetched from the store unless a change was applied
// since gen.
func (f *MeetingFeed) Store(ctx context.Context, tenantID string, list []meeting.Meeting, gen uint64) {
	if f.cache == nil {
		return
	}
	f.mu.Lock()
	stale := f.gen[tenantID] != gen
	if !stale {
		f.gen[tenantID] = gen
	}
	f.mu.Unlock()
	if stale {
		return
	}
	if err := cache.SetJSON(ctx, f.cache, cache.MeetingListKey(tenantID), list, f.ttl); err != nil {
		logger.With(ctx).Warn("meeting list cache write failed", slog.Any("error", err))
	}
}

// Resync drops every cached list this instance has seen and tells those
// tenants' clients to re-fetch.
func (f *MeetingFeed) Resync(ctx context.Context, reason string) {
	f.mu.Lock()
	tenants := make([]string, 0, len(f.gen))
	for tid := range f.gen {
		tenants = append(tenants, tid)
		f.gen[tid]++
	}
	f.mu.Unlock()

	for _, tid := range tenants {
		f.drop(ctx, tid)
		if f.hub != nil {
			f.hub.BroadcastToTenant(ctx, tid, broadcast.EventMeetingsResync, map[string]string{"reason": reason})
		}
	}
	slog.Info("meeting feed resynced", "tenants", len(tenants), "reason", reason)
}

func (f *MeetingFeed) drop(ctx context.Context, tenantID string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(ctx, cache.MeetingListKey(tenantID)); err != nil {
		logger.With(ctx).Warn("meeting list cache drop failed",
			slog.String("tenant_id", tenantID), slog.Any("error", err))
	}
}
