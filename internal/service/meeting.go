package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	studiootel "github.com/Strob0t/Studio/internal/adapter/otel"
	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/meeting"
	"github.com/Strob0t/Studio/internal/domain/notification"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/port/database"
)

const codeAttempts = 3

// MeetingConfig holds the meeting defaults.
type MeetingConfig struct {
	JoinBaseURL     string
	DefaultDuration int
}

// MeetingService manages the meeting lifecycle of the tenant in ctx.
type MeetingService struct {
	store         database.MeetingStore
	quota         *QuotaService
	notifications *NotificationService
	invites       *InviteService
	feed          *MeetingFeed
	cfg           MeetingConfig
	metrics       *studiootel.Metrics
	now           func() time.Time

	dispatches sync.WaitGroup
}

// NewMeetingService creates a MeetingService. notifications, invites and
// feed may be nil.
func NewMeetingService(store database.MeetingStore, quota *QuotaService, notifications *NotificationService, invites *InviteService, feed *MeetingFeed, cfg MeetingConfig) *MeetingService {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 30
	}
	return &MeetingService{
		store:         store,
		quota:         quota,
		notifications: notifications,
		invites:       invites,
		feed:          feed,
		cfg:           cfg,
		now:           time.Now,
	}
}

// SetMetrics enables meeting counting.
func (s *MeetingService) SetMetrics(m *studiootel.Metrics) { s.metrics = m }

// Create schedules a meeting hosted by the caller. Invitations for its
// participants are sent in the background; Wait blocks until they finish.
func (s *MeetingService) Create(ctx context.Context, req meeting.CreateRequest) (*meeting.Meeting, error) {
	host := middleware.UserFromContext(ctx)
	tid := middleware.TenantIDFromContext(ctx)
	if host == nil || tid == "" {
		return nil, domain.ErrUnauthorized
	}

	participants, err := req.Normalize(s.cfg.DefaultDuration)
	if err != nil {
		return nil, err
	}
	if err := s.quota.CheckParticipants(ctx, len(participants)); err != nil {
		return nil, err
	}

	m := &meeting.Meeting{
		TenantID:        tid,
		Title:           req.Title,
		Description:     req.Description,
		HostID:          host.ID,
		HostName:        host.DisplayName(),
		HostEmail:       host.Email,
		Participants:    participants,
		DurationMinutes: req.DurationMinutes,
		Status:          meeting.StatusScheduled,
	}
	if req.ScheduledAt != nil {
		at := req.ScheduledAt.UTC()
		m.ScheduledAt = &at
	}

	created, err := s.insertWithCode(ctx, m)
	if err != nil {
		return nil, err
	}
	s.metrics.MeetingCreated(ctx)
	logger.With(ctx).Info("meeting created",
		slog.String("meeting_id", created.ID), slog.Int("participants", len(participants)))

	if s.notifications != nil {
		if _, err := s.notifications.Create(ctx, notification.CreateRequest{
			UserID:  host.ID,
			Type:    notification.TypeInfo,
			Title:   "Meeting scheduled",
			Message: fmt.Sprintf("%q is scheduled. Share the link %s with participants.", created.Title, created.JoinURL),
			Data:    map[string]any{"meeting_id": created.ID, "code": created.Code},
		}); err != nil {
			logger.With(ctx).Warn("meeting notification failed", slog.Any("error", err))
		}
	}
	s.publish(ctx, meeting.OpInsert, created)

	if len(participants) > 0 && s.invites != nil {
		s.dispatchAsync(ctx, created)
	}
	return created, nil
}

// insertWithCode retries on the rare code collision.
func (s *MeetingService) insertWithCode(ctx context.Context, m *meeting.Meeting) (*meeting.Meeting, error) {
	var lastErr error
	for range codeAttempts {
		code, err := meeting.NewCode()
		if err != nil {
			return nil, err
		}
		m.Code = code
		m.JoinURL = meeting.JoinURL(s.cfg.JoinBaseURL, code)

		created, err := s.store.CreateMeeting(ctx, m)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("create meeting: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("create meeting: %w", lastErr)
}

// dispatchAsync sends invitations on a context detached from the request so
// a client disconnect does not stop the batch.
func (s *MeetingService) dispatchAsync(ctx context.Context, m *meeting.Meeting) {
	dctx := context.WithoutCancel(ctx)
	s.dispatches.Add(1)
	go func() {
		defer s.dispatches.Done()
		res, err := s.invites.DispatchMeeting(dctx, m)
		if err != nil {
			logger.With(dctx).Warn("background invite dispatch failed",
				slog.String("meeting_id", m.ID), slog.Any("error", err))
			return
		}
		logger.With(dctx).Info("background invite dispatch finished",
			slog.String("meeting_id", m.ID), slog.Int("total_invited", res.TotalInvited))
	}()
}

// Wait blocks until background invite dispatches have finished.
func (s *MeetingService) Wait() { s.dispatches.Wait() }

// Get returns one meeting of the tenant.
func (s *MeetingService) Get(ctx context.Context, id string) (*meeting.Meeting, error) {
	return s.store.GetMeeting(ctx, id)
}

// List returns the tenant's meetings, scheduled ones first by start time.
func (s *MeetingService) List(ctx context.Context) ([]meeting.Meeting, error) {
	tid := middleware.TenantIDFromContext(ctx)
	if tid == "" {
		return nil, domain.ErrUnauthorized
	}

	var gen uint64
	if s.feed != nil {
		list, g, ok := s.feed.Cached(ctx, tid)
		if ok {
			return list, nil
		}
		gen = g
	}

	list, err := s.store.ListMeetings(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []meeting.Meeting{}
	}
	meeting.Sort(list)
	if s.feed != nil {
		s.feed.Store(ctx, tid, list, gen)
	}
	return list, nil
}

// UpdateStatus moves a meeting along its status machine. Setting the
// current status again is a no-op.
func (s *MeetingService) UpdateStatus(ctx context.Context, id, status string) (*meeting.Meeting, error) {
	to, err := meeting.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := meeting.CheckTransition(m.Status, to); err != nil {
		return nil, err
	}
	if m.Status == to {
		return m, nil
	}

	expected := m.UpdatedAt
	m.Status = to
	updated, err := s.store.UpdateMeeting(ctx, m, expected)
	if err != nil {
		return nil, fmt.Errorf("update meeting status: %w", err)
	}
	s.publish(ctx, meeting.OpUpdate, updated)
	return updated, nil
}

// Update edits the descriptive fields of a meeting that has not ended.
func (s *MeetingService) Update(ctx context.Context, id string, req meeting.UpdateRequest) (*meeting.Meeting, error) {
	m, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := m.UpdatedAt
	if err := req.Apply(m); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateMeeting(ctx, m, expected)
	if err != nil {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	s.publish(ctx, meeting.OpUpdate, updated)
	return updated, nil
}

// Delete removes a meeting of the tenant.
func (s *MeetingService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteMeeting(ctx, id); err != nil {
		return err
	}
	if s.feed != nil {
		s.feed.Publish(ctx, meeting.Change{
			Op:        meeting.OpDelete,
			TenantID:  middleware.TenantIDFromContext(ctx),
			MeetingID: id,
			UpdatedAt: s.now().UTC(),
		})
	}
	return nil
}

// Calendar renders the meeting as an .ics document.
func (s *MeetingService) Calendar(ctx context.Context, id string) (string, error) {
	m, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return "", err
	}
	return meeting.Calendar(m, s.now())
}

// Invite sends invitations for a stored meeting and waits for the results.
func (s *MeetingService) Invite(ctx context.Context, id string) (*InviteResult, error) {
	if s.invites == nil {
		return nil, fmt.Errorf("invites: %w", domain.ErrRetryLater)
	}
	m, err := s.store.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.invites.DispatchMeeting(ctx, m)
}

func (s *MeetingService) publish(ctx context.Context, op meeting.Op, m *meeting.Meeting) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(ctx, meeting.Change{
		Op:        op,
		TenantID:  m.TenantID,
		MeetingID: m.ID,
		UpdatedAt: m.UpdatedAt,
		Meeting:   m,
	})
}
