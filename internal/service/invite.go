package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	studiootel "github.com/Strob0t/Studio/internal/adapter/otel"
	"github.com/Strob0t/Studio/internal/domain"
	"github.com/Strob0t/Studio/internal/domain/meeting"
	"github.com/Strob0t/Studio/internal/domain/notification"
	"github.com/Strob0t/Studio/internal/domain/plan"
	"github.com/Strob0t/Studio/internal/logger"
	"github.com/Strob0t/Studio/internal/middleware"
	"github.com/Strob0t/Studio/internal/port/notifier"
	"github.com/Strob0t/Studio/internal/port/sms"
)

// Recipient delivery states.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
	DeliveryLogged = "logged"
)

// InviteRequest is the dispatch input built by the client.
type InviteRequest struct {
	MeetingID       string     `json:"meetingId"`
	MeetingTitle    string     `json:"meetingTitle"`
	MeetingLink     string     `json:"meetingLink"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	HostName        string     `json:"hostName"`
	Participants    []string   `json:"participants"`
	// TenantPlan is what the client believes the plan is. The stored plan
	// is authoritative.
	TenantPlan string `json:"tenantPlan,omitempty"`
}

// RecipientResult is the outcome for one recipient.
type RecipientResult struct {
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// InviteResult aggregates a dispatch.
type InviteResult struct {
	Success      bool              `json:"success"`
	EmailResults []RecipientResult `json:"emailResults"`
	SMSResults   []RecipientResult `json:"smsResults"`
	TotalInvited int               `json:"totalInvited"`
}

// InviteService delivers meeting invitations by email and records SMS intents.
type InviteService struct {
	mail          notifier.Notifier
	sms           sms.Sender
	quota         *QuotaService
	notifications *NotificationService
	concurrency   int64
	metrics       *studiootel.Metrics
	now           func() time.Time
}

// NewInviteService creates an InviteService sending at most concurrency
// emails at once. notifications may be nil.
func NewInviteService(mail notifier.Notifier, smsSender sms.Sender, quota *QuotaService, notifications *NotificationService, concurrency int) *InviteService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &InviteService{
		mail:          mail,
		sms:           smsSender,
		quota:         quota,
		notifications: notifications,
		concurrency:   int64(concurrency),
		now:           time.Now,
	}
}

// SetMetrics enables invite counting.
func (s *InviteService) SetMetrics(m *studiootel.Metrics) { s.metrics = m }

// Dispatch validates a client-built request and sends the invitations.
func (s *InviteService) Dispatch(ctx context.Context, req InviteRequest) (*InviteResult, error) {
	if req.MeetingTitle == "" || req.MeetingLink == "" {
		return nil, domain.Validationf("meetingTitle and meetingLink are required")
	}
	participants, err := meeting.ParseParticipants(req.Participants)
	if err != nil {
		return nil, err
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 30
	}

	now := s.now().UTC()
	m := &meeting.Meeting{
		ID:              req.MeetingID,
		TenantID:        middleware.TenantIDFromContext(ctx),
		Title:           req.MeetingTitle,
		HostName:        req.HostName,
		Participants:    participants,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		JoinURL:         req.MeetingLink,
		Status:          meeting.StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if m.ID == "" {
		m.ID = "adhoc-" + now.Format("20060102T150405")
	}
	return s.dispatch(ctx, m, req.TenantPlan)
}

// DispatchMeeting sends invitations for a stored meeting.
func (s *InviteService) DispatchMeeting(ctx context.Context, m *meeting.Meeting) (*InviteResult, error) {
	return s.dispatch(ctx, m, "")
}

func (s *InviteService) dispatch(ctx context.Context, m *meeting.Meeting, claimedPlan string) (result *InviteResult, err error) {
	if len(m.Participants) == 0 {
		return nil, domain.Validationf("at least one participant is required")
	}
	log := logger.With(ctx).With(slog.String("meeting_id", m.ID))

	tid := middleware.TenantIDFromContext(ctx)
	if tid == "" {
		return nil, domain.ErrUnauthorized
	}
	stored, err := s.quota.TenantPlan(ctx, tid)
	if err != nil {
		return nil, err
	}
	if claimedPlan != "" {
		if p, perr := plan.Parse(claimedPlan); perr != nil || p != stored {
			log.Info("client plan differs from stored plan",
				slog.String("claimed", claimedPlan), slog.String("stored", string(stored)))
		}
	}
	if err := s.quota.CheckParticipants(ctx, len(m.Participants)); err != nil {
		return nil, err
	}

	// From here on the batch runs to completion regardless of the caller.
	ctx = context.WithoutCancel(ctx)
	started := s.now()
	ctx, span := studiootel.StartDispatchSpan(ctx, m.ID, len(m.Participants))
	defer func() {
		studiootel.EndSpan(span, err)
		s.metrics.DispatchFinished(ctx, started)
	}()

	emails, phones := meeting.Split(m.Participants)
	result = &InviteResult{
		Success:      true,
		EmailResults: s.sendEmails(ctx, m, emails),
		SMSResults:   s.sendSMS(ctx, m, phones),
	}
	for _, r := range append(result.EmailResults, result.SMSResults...) {
		if r.Status != DeliveryFailed {
			result.TotalInvited++
		}
	}
	log.Info("invites dispatched",
		slog.Int("emails", len(emails)), slog.Int("phones", len(phones)), slog.Int("total_invited", result.TotalInvited))

	s.recordNotification(ctx, m, result)
	return result, nil
}

// sendEmails delivers each message independently; results keep input order.
func (s *InviteService) sendEmails(ctx context.Context, m *meeting.Meeting, emails []meeting.Participant) []RecipientResult {
	results := make([]RecipientResult, len(emails))
	if len(emails) == 0 {
		return results
	}

	subject, html, err := renderInvite(m)
	if err != nil {
		for i, p := range emails {
			results[i] = RecipientResult{Recipient: p.Value, Status: DeliveryFailed, Error: err.Error()}
		}
		return results
	}
	var attachments []notifier.Attachment
	if m.ScheduledAt != nil && s.mail.Capabilities().Attachments {
		if ics, err := meeting.Calendar(m, s.now()); err == nil {
			attachments = []notifier.Attachment{{Filename: "invite.ics", ContentType: "text/calendar; method=REQUEST", Content: []byte(ics)}}
		}
	}

	sem := semaphore.NewWeighted(s.concurrency)
	var wg sync.WaitGroup
	for i, p := range emails {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = RecipientResult{Recipient: p.Value, Status: DeliveryFailed, Error: err.Error()}
			continue
		}
		wg.Add(1)
		go func(i int, to string) {
			defer wg.Done()
			defer sem.Release(1)

			id, err := s.mail.Send(ctx, notifier.Message{
				To:          to,
				Subject:     subject,
				HTML:        html,
				Text:        inviteText(m),
				Attachments: attachments,
				Tags:        map[string]string{"kind": "invite", "meeting_id": m.ID},
			})
			if err != nil {
				logger.With(ctx).Warn("invite email failed",
					slog.String("meeting_id", m.ID), slog.String("recipient", to), slog.Any("error", err))
				results[i] = RecipientResult{Recipient: to, Status: DeliveryFailed, Error: err.Error()}
				s.metrics.InviteResult(ctx, "email", false)
				return
			}
			results[i] = RecipientResult{Recipient: to, Status: DeliverySent, MessageID: id}
			s.metrics.InviteResult(ctx, "email", true)
		}(i, p.Value)
	}
	wg.Wait()
	return results
}

func (s *InviteService) sendSMS(ctx context.Context, m *meeting.Meeting, phones []meeting.Participant) []RecipientResult {
	results := make([]RecipientResult, 0, len(phones))
	for _, p := range phones {
		status, err := s.sms.Send(ctx, sms.Message{To: p.Value, Body: inviteText(m)})
		if err != nil {
			results = append(results, RecipientResult{Recipient: p.Value, Status: DeliveryFailed, Error: err.Error()})
			s.metrics.InviteResult(ctx, "sms", false)
			continue
		}
		if status == "" {
			status = DeliveryLogged
		}
		results = append(results, RecipientResult{Recipient: p.Value, Status: status})
		s.metrics.InviteResult(ctx, "sms", true)
	}
	return results
}

func (s *InviteService) recordNotification(ctx context.Context, m *meeting.Meeting, r *InviteResult) {
	if s.notifications == nil {
		return
	}
	req := notification.CreateRequest{
		Type:    notification.TypeInfo,
		Title:   "Invitations sent",
		Message: fmt.Sprintf("%d of %d invitations for %q were sent.", r.TotalInvited, len(r.EmailResults)+len(r.SMSResults), m.Title),
		Data:    map[string]any{"meeting_id": m.ID, "total_invited": r.TotalInvited},
	}
	if u := middleware.UserFromContext(ctx); u != nil {
		req.UserID = u.ID
	}
	if _, err := s.notifications.Create(ctx, req); err != nil {
		logger.With(ctx).Warn("invite notification failed", slog.Any("error", err))
	}
}
