package observability

import (
	"testing"

	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigClampsAndDefaults(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "production",
		Telemetry:   config.TelemetryConfig{SamplingRatio: 3},
	})

	assert.Equal(t, "creditgate", cfg.ServiceName)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigKeepsHTTPProtocol(t *testing.T) {
	cfg := LoadConfig(config.Config{Telemetry: config.TelemetryConfig{OtelProtocol: "http/protobuf", SamplingRatio: 1}})
	assert.Equal(t, "http/protobuf", cfg.OtelExporterProtocol)
	assert.Equal(t, "http/protobuf", cfg.MetricsConfig().ExporterProtocol)
	assert.Equal(t, 1.0, cfg.TracingConfig().SamplingRatio)
}

func TestDebugFollowsLevelOrEnvironment(t *testing.T) {
	assert.True(t, Config{LogLevel: "debug", Environment: "production"}.Debug())
	assert.True(t, Config{Environment: "local"}.Debug())
	assert.False(t, Config{Environment: "staging"}.Debug())

	logCfg := Config{Environment: "test"}.LoggerConfig()
	assert.True(t, logCfg.Debug)
	assert.True(t, logCfg.IncludeStackOnError)
}
