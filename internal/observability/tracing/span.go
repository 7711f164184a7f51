package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartInvoiceSpan opens an internal span for one invoice operation, e.g.
// "invoice.add_line".
func StartInvoiceSpan(ctx context.Context, operation, invoiceID string) (context.Context, trace.Span) {
	return otel.Tracer("tka-invoice/invoice").Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("invoice.id", invoiceID),
			attribute.String("invoice.operation", operation),
		),
	)
}

// EndSpan records err, if any, and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		if safeErr := SafeError(err); safeErr != nil {
			span.RecordError(safeErr)
		}
		span.SetStatus(codes.Error, "operation failed")
	}
	span.End()
}
