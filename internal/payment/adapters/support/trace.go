package support

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/payssd/chapchap-sub000/internal/payment/domain"
)

const tracerName = "github.com/payssd/chapchap-sub000/internal/payment/adapters"

// StartSpan opens a client span for one provider operation.
func StartSpan(ctx context.Context, provider domain.Provider, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "payment."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("payment.provider", provider.String()),
			attribute.String("payment.operation", operation),
		),
	)
}

// EndSpan records the outcome and ends the span.
func EndSpan(span trace.Span, ok bool, message string) {
	if ok {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, message)
	}
	span.End()
}
