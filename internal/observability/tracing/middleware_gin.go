package tracing

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/creditgate/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "creditgate/http"

// GinMiddleware opens a server span per request. Credit and rate limit
// denials are recorded as span events, not span errors.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx = withRequestBaggage(ctx, obscontext.RequestIDFromContext(ctx))

		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		reqCtx := c.Request.Context()
		if requestID := obscontext.RequestIDFromContext(reqCtx); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if paymentID := obscontext.PaymentIDFromContext(reqCtx); paymentID != "" {
			attrs = append(attrs, attribute.String("payment.id", paymentID))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		switch {
		case status >= http.StatusInternalServerError:
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
			span.AddEvent("request.denied", trace.WithAttributes(
				attribute.String("denial_reason", c.GetString("denial_reason")),
			))
		}
	}
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
