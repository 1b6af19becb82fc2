package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "studio"

// StartOrderSpan starts a span for payment order creation.
func StartOrderSpan(ctx context.Context, tenantID, plan, cycle string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "billing.create_order",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("plan", plan),
			attribute.String("billing.cycle", cycle),
		),
	)
}

// StartWebhookSpan starts a span for one payment provider event.
func StartWebhookSpan(ctx context.Context, eventType, eventID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "webhook.payment",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("webhook.event_type", eventType),
			attribute.String("webhook.event_id", eventID),
		),
	)
}

// StartDispatchSpan starts a span for an invite fan-out.
func StartDispatchSpan(ctx context.Context, meetingID string, recipients int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "invites.dispatch",
		trace.WithAttributes(
			attribute.String("meeting.id", meetingID),
			attribute.Int("invites.recipients", recipients),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
