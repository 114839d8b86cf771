package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/fx"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("reason", "fingerprint_limit"),
		attribute.String("payment_id", "pi_123"),
		attribute.String("fingerprint", "abc"),
		attribute.String("outcome", "reserved"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("reason"))
	assert.Contains(t, keys, attribute.Key("outcome"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCreditReservation(context.Background(), "reserved")
		m.RecordRateLimitDenied(context.Background(), "redis", "ip_limit")
		m.RecordProviderCall(context.Background(), "demo", "ok")
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "creditgate"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordPaymentEvent(context.Background(), "stripe", "payment_intent.succeeded")
		m.RecordRateLimitAllowed(context.Background(), "database")
	})
}

func TestDeniedCounterCarriesReasonOnly(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRateLimitDenied(ctx, " redis ", "ip_limit")
	m.RecordRateLimitDenied(ctx, "redis", "ip_limit")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var found bool
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		if metric.Name != "creditgate_rate_limit_denied_total" {
			continue
		}
		found = true
		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		backend, _ := sum.DataPoints[0].Attributes.Value("backend")
		assert.Equal(t, "redis", backend.AsString())
	}
	assert.True(t, found)
}

// recordingLifecycle captures appended hooks without running them.
type recordingLifecycle struct {
	hooks []fx.Hook
}

func (l *recordingLifecycle) Append(hook fx.Hook) { l.hooks = append(l.hooks, hook) }

func TestNewProviderRegistersShutdownHook(t *testing.T) {
	lc := &recordingLifecycle{}
	provider, err := NewProvider(lc, Config{Enabled: true, ExporterProtocol: "http", ExporterEndpoint: "localhost:4318"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { otel.SetMeterProvider(noop.NewMeterProvider()) })

	_, isSDK := provider.(*sdkmetric.MeterProvider)
	assert.True(t, isSDK)
	require.Len(t, lc.hooks, 1)
	require.NotNil(t, lc.hooks[0].OnStop)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = lc.hooks[0].OnStop(ctx)
}

func TestNewProviderDisabledIsNoop(t *testing.T) {
	lc := &recordingLifecycle{}
	_, err := NewProvider(lc, Config{}, nil)
	require.NoError(t, err)
	assert.Empty(t, lc.hooks)
}
