package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics counts credit, payment, limiter and provider outcomes. A nil
// *Metrics records nothing, so services take it as an optional dependency.
type Metrics struct {
	reservations metric.Int64Counter
	payments     metric.Int64Counter
	allowed      metric.Int64Counter
	denied       metric.Int64Counter
	providers    metric.Int64Counter
}

// NewProvider registers the global meter provider. When export is disabled a
// noop provider is installed and instruments cost nothing.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName(cfg)),
			attribute.String("deployment.environment", cfg.Environment),
		)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metric export enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(serviceName(cfg))

	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.reservations, "creditgate_credit_reservations_total", "Credit reservation attempts by outcome."},
		{&m.payments, "creditgate_payment_events_total", "Payment confirmations and webhook events by provider."},
		{&m.allowed, "creditgate_rate_limit_allowed_total", "Anonymous generations admitted by the limiter."},
		{&m.denied, "creditgate_rate_limit_denied_total", "Anonymous generations denied by the limiter."},
		{&m.providers, "creditgate_provider_calls_total", "Image provider invocations by outcome."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) RecordCreditReservation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	inc(ctx, m.reservations, attribute.String("outcome", outcome))
}

func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	inc(ctx, m.payments, attribute.String("provider", provider), attribute.String("event_type", eventType))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, backend string) {
	if m == nil {
		return
	}
	inc(ctx, m.allowed, attribute.String("backend", backend))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, backend, reason string) {
	if m == nil {
		return
	}
	inc(ctx, m.denied, attribute.String("backend", backend), attribute.String("reason", reason))
}

func (m *Metrics) RecordProviderCall(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	inc(ctx, m.providers, attribute.String("provider", provider), attribute.String("outcome", outcome))
}

func inc(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	for i, attr := range attrs {
		if attr.Value.Type() == attribute.STRING {
			attrs[i] = attribute.String(string(attr.Key), strings.TrimSpace(attr.Value.AsString()))
		}
	}
	counter.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func serviceName(cfg Config) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return "creditgate"
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Payment ids, fingerprints and client addresses never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"provider":    {},
	"event_type":  {},
	"backend":     {},
	"outcome":     {},
	"reason":      {},
	"operation":   {},
}

func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; ok {
			filtered = append(filtered, attr)
		}
	}
	return filtered
}
