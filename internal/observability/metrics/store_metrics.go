package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/creditgate/pkg/db"
)

const (
	StoreErrorReasonDeadlineExceeded     = "deadline_exceeded"
	StoreErrorReasonLockTimeout          = "db_lock_timeout"
	StoreErrorReasonSerializationFailure = "serialization_failure"
	StoreErrorReasonUniqueViolation      = "unique_violation"
	StoreErrorReasonUnknown              = "unknown"
)

// StoreMetrics captures payment and usage store health for the /metrics scrape.
type StoreMetrics struct {
	operations *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

var (
	storeMetricsOnce sync.Once
	storeMetrics     *StoreMetrics
)

// Store returns the singleton store metrics registry.
func Store() *StoreMetrics {
	return StoreWithConfig(Config{})
}

// StoreWithConfig returns the singleton store metrics registry using config labels.
func StoreWithConfig(cfg Config) *StoreMetrics {
	storeMetricsOnce.Do(func() {
		storeMetrics = newStoreMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return storeMetrics
}

func newStoreMetrics(registerer prometheus.Registerer, cfg Config) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName(cfg),
		"env":     environment,
	}

	operations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "creditgate_store_operation_duration_seconds",
		Help:        "Latency of payment and usage store operations.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	}, []string{"backend", "operation"})
	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditgate_store_errors_total",
		Help:        "Store failures surfaced as store_unavailable.",
		ConstLabels: constLabels,
	}, []string{"backend", "operation", "reason"})

	registerer.MustRegister(operations, storeErrors)

	return &StoreMetrics{
		operations: operations,
		errors:     storeErrors,
	}
}

// ObserveOperation records the latency of one store call.
func (m *StoreMetrics) ObserveOperation(backend, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// IncError counts a store failure with a low-cardinality reason.
func (m *StoreMetrics) IncError(backend, operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(backend, operation, ClassifyStoreError(err)).Inc()
}

// Track observes latency for an operation that started at start and counts
// storeErr when it is non-nil. Guard failures are not store errors.
func (m *StoreMetrics) Track(backend, operation string, start time.Time, storeErr error) {
	if m == nil {
		return
	}
	m.ObserveOperation(backend, operation, time.Since(start))
	m.IncError(backend, operation, storeErr)
}

// ClassifyStoreError maps driver errors to low-cardinality reasons.
func ClassifyStoreError(err error) string {
	if err == nil {
		return StoreErrorReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return StoreErrorReasonDeadlineExceeded
	}
	if db.IsDuplicateKeyErr(err) {
		return StoreErrorReasonUniqueViolation
	}
	switch db.PGCode(err) {
	case db.PGLockNotAvailable:
		return StoreErrorReasonLockTimeout
	case db.PGSerializationFailure, db.PGDeadlockDetected:
		return StoreErrorReasonSerializationFailure
	}
	return StoreErrorReasonUnknown
}
