package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexory/readygate/internal/domain"
)

// TracingBilling wraps a domain.BillingProvider with OpenTelemetry tracing.
type TracingBilling struct {
	next   domain.BillingProvider
	tracer trace.Tracer
}

// Compile-time check: TracingBilling implements domain.BillingProvider.
var _ domain.BillingProvider = (*TracingBilling)(nil)

// NewTracingBilling creates a tracing decorator around the given provider.
func NewTracingBilling(next domain.BillingProvider) *TracingBilling {
	return &TracingBilling{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (b *TracingBilling) CreatePaymentIntent(ctx context.Context, plan, successURL, failureURL string) (domain.PaymentIntent, error) {
	ctx, span := b.tracer.Start(ctx, "BillingProvider.CreatePaymentIntent",
		trace.WithAttributes(attribute.String("payment.plan", plan)),
	)
	defer span.End()

	intent, err := b.next.CreatePaymentIntent(ctx, plan, successURL, failureURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("payment.attempt_id", intent.AttemptID))
	}
	return intent, err
}

func (b *TracingBilling) GetPaymentStatus(ctx context.Context, attemptID string) (domain.PaymentStatus, error) {
	ctx, span := b.tracer.Start(ctx, "BillingProvider.GetPaymentStatus",
		trace.WithAttributes(attribute.String("payment.attempt_id", attemptID)),
	)
	defer span.End()

	status, err := b.next.GetPaymentStatus(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("payment.status", string(status)))
	}
	return status, err
}
