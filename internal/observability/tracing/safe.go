package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractContext pulls remote span context and baggage from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var forbiddenKeys = []string{"token", "secret", "signature", "authorization", "password"}

// SafeAttributes drops attributes whose key could carry credentials.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if isForbiddenKey(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError returns an error suitable for span recording. Raw messages are
// replaced when they could echo request secrets.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, key := range forbiddenKeys {
		if strings.Contains(msg, key) {
			return errors.New("redacted_error")
		}
	}
	return err
}

func isForbiddenKey(key string) bool {
	key = strings.ToLower(key)
	for _, forbidden := range forbiddenKeys {
		if strings.Contains(key, forbidden) {
			return true
		}
	}
	return false
}
