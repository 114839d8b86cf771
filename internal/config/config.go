package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	// NodeID seeds the snowflake generator for payment and generation ids.
	// Replicas must use distinct values in 0..1023.
	NodeID int64

	OTLPEndpoint string
	Telemetry    TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// PaymentStore selects the payment record backend.
	PaymentStore string
	Dynamo       DynamoConfig
	BoltPath     string

	// RateLimitBackend selects the usage limiter: redis (atomic) or database (best effort).
	RateLimitBackend string
	Redis            RedisConfig

	Stripe StripeConfig

	// DevBypassEnabled is resolved once at startup and never enabled in production.
	DevBypassEnabled bool
	DemoMode         bool
	DemoResultURL    string
}

// TelemetryConfig carries the logging and OpenTelemetry knobs.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelProtocol  string
	SamplingRatio float64
	// SlowQueryMS is the threshold above which SQL statements log at warn.
	SlowQueryMS int
}

type DynamoConfig struct {
	Region          string
	Endpoint        string
	PaymentsTable   string
	AccessKeyID     string
	SecretAccessKey string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

const (
	PaymentStoreDatabase = "database"
	PaymentStoreDynamo   = "dynamodb"
	PaymentStoreBolt     = "bolt"

	RateLimitRedis    = "redis"
	RateLimitDatabase = "database"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	devBypass := getenvBool("DEV_BYPASS_ENABLED", false)
	if environment == "production" {
		devBypass = false
	}

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "creditgate"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  environment,
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       getenvInt64("NODE_ID", 1),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:   getenvBool("OTEL_ENABLED", true),
			OtelProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
			SlowQueryMS:   int(getenvInt64("DATABASE_SLOW_QUERY_MS", 200)),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "creditgate"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		PaymentStore: normalizeChoice(getenv("PAYMENT_STORE", PaymentStoreDatabase),
			PaymentStoreDatabase, PaymentStoreDynamo, PaymentStoreBolt),
		Dynamo: DynamoConfig{
			Region:          getenv("AWS_REGION", "us-east-1"),
			Endpoint:        strings.TrimSpace(getenv("DYNAMODB_ENDPOINT", "")),
			PaymentsTable:   getenv("DYNAMODB_PAYMENTS_TABLE", "payments"),
			AccessKeyID:     strings.TrimSpace(getenv("APP_AWS_ACCESS_KEY_ID", "")),
			SecretAccessKey: strings.TrimSpace(getenv("APP_AWS_SECRET_ACCESS_KEY", "")),
		},
		BoltPath: getenv("BOLT_PATH", "creditgate.db"),

		RateLimitBackend: normalizeChoice(getenv("RATE_LIMIT_BACKEND", RateLimitRedis),
			RateLimitRedis, RateLimitDatabase),
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},

		Stripe: StripeConfig{
			SecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
		},

		DevBypassEnabled: devBypass,
		DemoMode:         getenvBool("DEMO_MODE", false),
		DemoResultURL:    getenv("DEMO_RESULT_URL", "/result.png"),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// normalizeChoice returns raw lowercased when it is one of allowed, otherwise allowed[0].
func normalizeChoice(raw string, allowed ...string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, a := range allowed {
		if value == a {
			return a
		}
	}
	return allowed[0]
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
