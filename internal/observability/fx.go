package observability

import (
	"github.com/smallbiznis/creditgate/internal/observability/logger"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the process logger, the tracer and meter providers, and
// the domain, HTTP and store metrics.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.LoggerConfig,
		Config.TracingConfig,
		Config.MetricsConfig,
	),
	fx.Provide(
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.StoreWithConfig,
	),
	// Nothing else depends on the tracer provider; force its construction so
	// the global provider is installed.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
