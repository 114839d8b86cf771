package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/creditgate/internal/clock"
	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
)

// DefaultTolerance bounds the age of a signed webhook timestamp.
const DefaultTolerance = 5 * time.Minute

type WebhookAdapter struct {
	webhookSecret string
	tolerance     time.Duration
	clock         clock.Clock
}

func NewWebhookAdapter(secret string, clk clock.Clock) (*WebhookAdapter, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	if clk == nil {
		clk = clock.System()
	}
	return &WebhookAdapter{
		webhookSecret: secret,
		tolerance:     DefaultTolerance,
		clock:         clk,
	}, nil
}

// Verify checks a Stripe-Signature header of the form t=<unix>,v1=<hex>[,v1=...]
// against payload. Any v1 entry may match. Timestamps outside the tolerance
// window are rejected in both directions.
func (a *WebhookAdapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sig, ok := parseSignatureHeader(headers.Get("Stripe-Signature"))
	if !ok {
		return paymentdomain.ErrInvalidSignature
	}

	age := a.clock.Now().Sub(sig.signedAt)
	if age > a.tolerance || age < -a.tolerance {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write([]byte(sig.rawTimestamp))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range sig.v1 {
		if hmac.Equal(candidate, expected) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

// webhookEventTypes maps Stripe event types onto canonical payment events.
// Anything else is acknowledged and ignored.
var webhookEventTypes = map[string]string{
	"payment_intent.succeeded":      paymentdomain.EventTypePaymentSucceeded,
	"payment_intent.payment_failed": paymentdomain.EventTypePaymentFailed,
}

func (a *WebhookAdapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var envelope struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Created int64  `json:"created"`
		Data    struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(envelope.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	eventType, ok := webhookEventTypes[strings.TrimSpace(envelope.Type)]
	if !ok {
		return nil, paymentdomain.ErrEventIgnored
	}

	var intent struct {
		ID             string `json:"id"`
		Amount         int64  `json:"amount"`
		AmountReceived int64  `json:"amount_received"`
		Currency       string `json:"currency"`
		Created        int64  `json:"created"`
	}
	if err := json.Unmarshal(envelope.Data.Object, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	amount := intent.Amount
	if eventType == paymentdomain.EventTypePaymentSucceeded && intent.AmountReceived > 0 {
		amount = intent.AmountReceived
	}

	return &paymentdomain.PaymentEvent{
		Provider:          providerName,
		ProviderEventID:   envelope.ID,
		ProviderPaymentID: intent.ID,
		Type:              eventType,
		Amount:            amount,
		Currency:          strings.ToLower(strings.TrimSpace(intent.Currency)),
		OccurredAt:        a.occurredAt(intent.Created, envelope.Created),
		RawPayload:        payload,
	}, nil
}

// occurredAt prefers the intent creation time, then the event time.
func (a *WebhookAdapter) occurredAt(unixTimes ...int64) time.Time {
	for _, ts := range unixTimes {
		if ts != 0 {
			return time.Unix(ts, 0).UTC()
		}
	}
	return a.clock.Now().UTC()
}

type signatureHeader struct {
	rawTimestamp string
	signedAt     time.Time
	v1           [][]byte
}

// parseSignatureHeader ignores unknown schemes and undecodable v1 values.
func parseSignatureHeader(header string) (signatureHeader, bool) {
	var sig signatureHeader
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "t":
			sig.rawTimestamp = value
		case "v1":
			if decoded, err := hex.DecodeString(value); err == nil {
				sig.v1 = append(sig.v1, decoded)
			}
		}
	}
	if sig.rawTimestamp == "" || len(sig.v1) == 0 {
		return sig, false
	}
	unix, err := strconv.ParseInt(sig.rawTimestamp, 10, 64)
	if err != nil {
		return sig, false
	}
	sig.signedAt = time.Unix(unix, 0)
	return sig, true
}
