package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	obscontext "github.com/smallbiznis/creditgate/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the process logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	Debug       bool

	IncludeCaller       bool
	IncludeStackOnError bool
}

// Repeated entries with the same message are sampled after the first
// samplingInitial per second. Rate limit denials under load hit this.
const (
	samplingInitial    = 100
	samplingThereafter = 100
)

// New builds the process logger, installs it as the zap global and syncs it
// on shutdown.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level, cfg.Debug)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = normalizeFormat(cfg.Format)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.Sampling = nil
	zapCfg.DisableCaller = !cfg.IncludeCaller
	if !cfg.IncludeStackOnError {
		zapCfg.DisableStacktrace = true
	}

	var opts []zap.Option
	if !cfg.Debug {
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewSamplerWithOptions(core, time.Second, samplingInitial, samplingThereafter)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "creditgate"
	}
	logger = logger.With(
		zap.String("service", name),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)
	zap.ReplaceGlobals(logger)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				// stdout sync returns EINVAL on some platforms.
				_ = logger.Sync()
				return nil
			},
		})
	}
	return logger, nil
}

func parseLevel(raw string, debug bool) (zapcore.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if debug {
			return zapcore.DebugLevel, nil
		}
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "console" {
		return "console"
	}
	return "json"
}

// FromContext returns a logger enriched with request-scoped fields.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches the provided logger with correlation fields.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	fields := []zap.Field{
		zap.String("request_id", obscontext.RequestIDFromContext(ctx)),
	}
	if paymentID := obscontext.PaymentIDFromContext(ctx); paymentID != "" {
		fields = append(fields, zap.String("payment_id", paymentID))
	}
	fields = append(fields, traceFieldsFromContext(ctx)...)

	return base.With(fields...)
}

// WithPayment adds the payment intent identifier to the logger.
func WithPayment(log *zap.Logger, paymentID string) *zap.Logger {
	if log == nil {
		return nil
	}
	return log.With(zap.String("payment_id", strings.TrimSpace(paymentID)))
}

func traceFieldsFromContext(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	sc := span.SpanContext()
	if !sc.IsValid() {
		return []zap.Field{
			zap.String("trace_id", ""),
			zap.String("span_id", ""),
		}
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
