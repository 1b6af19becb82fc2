package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for Studio instruments.
const MeterName = "studio"

// Metrics holds all Studio metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	OrdersCreated    metric.Int64Counter
	WebhookEvents    metric.Int64Counter
	InvitesSent      metric.Int64Counter
	InvitesFailed    metric.Int64Counter
	MeetingsCreated  metric.Int64Counter
	QuotaRejections  metric.Int64Counter
	DispatchDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.OrdersCreated, err = meter.Int64Counter("studio.orders.created",
		metric.WithDescription("Payment orders created"))
	if err != nil {
		return nil, err
	}

	m.WebhookEvents, err = meter.Int64Counter("studio.webhook.events",
		metric.WithDescription("Payment webhook events by type and outcome"))
	if err != nil {
		return nil, err
	}

	m.InvitesSent, err = meter.Int64Counter("studio.invites.sent",
		metric.WithDescription("Invitations delivered or logged, by channel"))
	if err != nil {
		return nil, err
	}

	m.InvitesFailed, err = meter.Int64Counter("studio.invites.failed",
		metric.WithDescription("Invitations that failed, by channel"))
	if err != nil {
		return nil, err
	}

	m.MeetingsCreated, err = meter.Int64Counter("studio.meetings.created",
		metric.WithDescription("Meetings created"))
	if err != nil {
		return nil, err
	}

	m.QuotaRejections, err = meter.Int64Counter("studio.quota.rejections",
		metric.WithDescription("Requests rejected by the participant quota"))
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram("studio.invites.dispatch_seconds",
		metric.WithDescription("Invite dispatch duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) OrderCreated(ctx context.Context, plan, cycle string) {
	if m == nil {
		return
	}
	m.OrdersCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plan", plan), attribute.String("cycle", cycle)))
}

func (m *Metrics) WebhookEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType), attribute.String("outcome", outcome)))
}

func (m *Metrics) InviteResult(ctx context.Context, channel string, ok bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("channel", channel))
	if ok {
		m.InvitesSent.Add(ctx, 1, attrs)
		return
	}
	m.InvitesFailed.Add(ctx, 1, attrs)
}

func (m *Metrics) MeetingCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.MeetingsCreated.Add(ctx, 1)
}

func (m *Metrics) QuotaRejected(ctx context.Context, plan string) {
	if m == nil {
		return
	}
	m.QuotaRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("plan", plan)))
}

func (m *Metrics) DispatchFinished(ctx context.Context, started time.Time) {
	if m == nil {
		return
	}
	m.DispatchDuration.Record(ctx, time.Since(started).Seconds())
}
