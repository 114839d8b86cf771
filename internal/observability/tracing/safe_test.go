package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCredentials(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/generations/save"),
		attribute.String("payment.token", "abc"),
		attribute.String("stripe.signature", "t=1,v1=x"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorRedactsSecrets(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New("invalid token abc")), "redacted_error")

	plain := errors.New("store_unavailable")
	assert.Same(t, plain, SafeError(plain))
}
