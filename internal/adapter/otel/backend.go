package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexory/readygate/internal/domain"
)

const tracerName = "github.com/nexory/readygate/internal/adapter/otel"

// TracingBackend wraps a domain.ReadinessBackend with OpenTelemetry tracing.
// Each method creates a span with semantic attributes and records errors.
type TracingBackend struct {
	next   domain.ReadinessBackend
	tracer trace.Tracer
}

// Compile-time check: TracingBackend implements domain.ReadinessBackend.
var _ domain.ReadinessBackend = (*TracingBackend)(nil)

// NewTracingBackend creates a tracing decorator around the given backend.
func NewTracingBackend(next domain.ReadinessBackend) *TracingBackend {
	return &TracingBackend{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (b *TracingBackend) EnsureProfile(ctx context.Context, userID string) error {
	ctx, span := b.tracer.Start(ctx, "ReadinessBackend.EnsureProfile",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	err := b.next.EnsureProfile(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (b *TracingBackend) VerifyProfile(ctx context.Context, userID string) (domain.VerifyResult, error) {
	ctx, span := b.tracer.Start(ctx, "ReadinessBackend.VerifyProfile",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	result, err := b.next.VerifyProfile(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Bool("profile.exists", result.ProfileExists),
			attribute.Bool("workspace.exists", result.WorkspaceExists),
			attribute.String("subscription.status", result.SubscriptionStatus),
			attribute.Bool("payment.needed", result.NeedsPayment),
		)
	}
	return result, err
}

func (b *TracingBackend) FetchWorkspace(ctx context.Context, workspaceID string) error {
	ctx, span := b.tracer.Start(ctx, "ReadinessBackend.FetchWorkspace",
		trace.WithAttributes(attribute.String("workspace.id", workspaceID)),
	)
	defer span.End()

	err := b.next.FetchWorkspace(ctx, workspaceID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
