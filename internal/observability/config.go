package observability

import (
	"strings"

	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/observability/logger"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/internal/observability/tracing"
)

// Config is the observability view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "creditgate"
	}
	ratio := cfg.Telemetry.SamplingRatio
	if ratio < 0 || ratio > 1 {
		ratio = 0.1
	}
	protocol := cfg.Telemetry.OtelProtocol
	if protocol == "" {
		protocol = "grpc"
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             cfg.Telemetry.LogLevel,
		LogFormat:            cfg.Telemetry.LogFormat,
		OtelEnabled:          cfg.Telemetry.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: protocol,
		OtelSamplingRatio:    ratio,
	}
}

// Debug is on for debug level or any non-production style environment.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func (c Config) LoggerConfig() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) TracingConfig() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

// MetricsConfig shares the trace exporter endpoint. Metrics export is on
// whenever tracing export is.
func (c Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
