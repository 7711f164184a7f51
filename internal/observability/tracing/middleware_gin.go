package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/tka-invoice/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Context keys set by the HTTP handlers and read back once they return.
const (
	InvoiceIDKey = "invoice_id"
	ActorRoleKey = "actor_role"
)

// GinMiddleware opens one server span per request, named after the matched
// route, and tags it with the invoice and actor the handlers resolved.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("tka-invoice/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, SpanName(method, route),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", method),
				attribute.String("http.route", route),
				attribute.String("tka.resource", ResourceFromRoute(route)),
			),
		)

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []attribute.KeyValue{
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		if id := c.GetString(InvoiceIDKey); id != "" {
			attrs = append(attrs, attribute.String("invoice.id", id))
		}
		if role := c.GetString(ActorRoleKey); role != "" {
			attrs = append(attrs, attribute.String("actor.role", role))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

func SpanName(method, route string) string {
	return "HTTP " + method + " " + route
}

// ResourceFromRoute returns the first path segment under /api, e.g.
// "invoices" for /api/invoices/:id/lines. Other routes are "system".
func ResourceFromRoute(route string) string {
	rest, ok := strings.CutPrefix(route, "/api/")
	if !ok || rest == "" {
		return "system"
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}
