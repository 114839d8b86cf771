package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/creditgate/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls request logging. ErrorClassifier maps the last
// handler error to an (error_type, error_code) pair.
type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware writes one http_request entry per request. Credit and rate
// limit denials are routine and log below info.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := ensureRequestID(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = obscontext.WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := routeOf(c)
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("outcome", outcomeOf(status)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if denial := strings.TrimSpace(c.GetString("denial_reason")); denial != "" {
			fields = append(fields, zap.String("denial_reason", denial))
		}
		if lastErr := c.Errors.Last(); lastErr != nil && cfg.ErrorClassifier != nil {
			errorType, errorCode := cfg.ErrorClassifier(lastErr.Err)
			fields = append(fields,
				zap.String("error_type", errorType),
				zap.String("error_code", errorCode),
			)
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		// Handlers may have added the payment id to the request context.
		log := FromContext(c.Request.Context())
		if ce := log.Check(levelFor(route, status), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func ensureRequestID(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(requestIDHeader, requestID)
	return requestID
}

func routeOf(c *gin.Context) string {
	if route := strings.TrimSpace(c.FullPath()); route != "" {
		return route
	}
	return "unknown"
}

func outcomeOf(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "server_error"
	case status == http.StatusPaymentRequired, status == http.StatusTooManyRequests,
		status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "denied"
	case status >= http.StatusBadRequest:
		return "client_error"
	default:
		return "ok"
	}
}

func levelFor(route string, status int) zapcore.Level {
	switch {
	case route == "/health" || route == "/metrics":
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status == http.StatusPaymentRequired, status == http.StatusTooManyRequests:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
