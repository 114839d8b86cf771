package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/smallbiznis/creditgate/internal/clock"
	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signed := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func newAdapter(t *testing.T, now time.Time) (*WebhookAdapter, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(now)
	adapter, err := NewWebhookAdapter("whsec_test", clk)
	require.NoError(t, err)
	return adapter, clk
}

func TestVerifySignature(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	adapter, _ := newAdapter(t, now)
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded","data":{"object":{}}}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_test", payload, now.Unix()))
	assert.NoError(t, adapter.Verify(context.Background(), payload, headers))

	headers.Set("Stripe-Signature", buildStripeSignatureHeader("wrong", payload, now.Unix()))
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)

	headers.Del("Stripe-Signature")
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)

	headers.Set("Stripe-Signature", "t=abc")
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)
}

func TestVerifySignatureTolerance(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	adapter, clk := newAdapter(t, now)
	payload := []byte(`{"id":"evt_1"}`)
	headers := http.Header{}
	headers.Set("Stripe-Signature", buildStripeSignatureHeader("whsec_test", payload, now.Unix()))

	clk.Advance(DefaultTolerance)
	assert.NoError(t, adapter.Verify(context.Background(), payload, headers))

	clk.Advance(time.Second)
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)
}

func TestParsePaymentEvent(t *testing.T) {
	adapter, _ := newAdapter(t, time.Now())
	ctx := context.Background()

	succeeded := []byte(`{"id":"evt_pi","type":"payment_intent.succeeded","created":1767225600,
		"data":{"object":{"id":"pi_1","amount":100,"amount_received":100,"currency":"USD","created":1767225600}}}`)
	event, err := adapter.Parse(ctx, succeeded)
	require.NoError(t, err)
	assert.Equal(t, "stripe", event.Provider)
	assert.Equal(t, "evt_pi", event.ProviderEventID)
	assert.Equal(t, "pi_1", event.ProviderPaymentID)
	assert.Equal(t, paymentdomain.EventTypePaymentSucceeded, event.Type)
	assert.Equal(t, paymentdomain.StatusSucceeded, event.Status())
	assert.Equal(t, int64(100), event.Amount)
	assert.Equal(t, "usd", event.Currency)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), event.OccurredAt)

	failed := []byte(`{"id":"evt_f","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","amount":100}}}`)
	event, err = adapter.Parse(ctx, failed)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusFailed, event.Status())
}

func TestParseRejectsAndIgnores(t *testing.T) {
	adapter, _ := newAdapter(t, time.Now())
	ctx := context.Background()

	_, err := adapter.Parse(ctx, []byte(`{not json`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Parse(ctx, []byte(`{"type":"payment_intent.succeeded"}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)

	_, err = adapter.Parse(ctx, []byte(`{"id":"evt","type":"payment_intent.succeeded","data":{"object":{}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)

	_, err = adapter.Parse(ctx, []byte(`{"id":"evt","type":"charge.refunded","data":{"object":{}}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestNewWebhookAdapterRequiresSecret(t *testing.T) {
	_, err := NewWebhookAdapter("  ", nil)
	assert.Error(t, err)
}

func TestVerifyAcceptsAnyRotatedSignature(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	adapter, _ := newAdapter(t, now)
	payload := []byte(`{"id":"evt_rot"}`)

	valid := buildStripeSignatureHeader("whsec_test", payload, now.Unix())
	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=nothex,v0=legacy,v1=%s", now.Unix(), valid[len(valid)-64:]))
	assert.NoError(t, adapter.Verify(context.Background(), payload, headers))
}

func TestParseFallsBackToClockTime(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	adapter, _ := newAdapter(t, now)

	event, err := adapter.Parse(context.Background(),
		[]byte(`{"id":"evt_nt","type":"payment_intent.succeeded","data":{"object":{"id":"pi_nt","amount":500}}}`))
	require.NoError(t, err)
	assert.Equal(t, now, event.OccurredAt)
	assert.Equal(t, int64(500), event.Amount)
}
