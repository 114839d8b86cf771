package domain

import (
	"context"
	"net/http"

	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
)

// DevBypassPaymentID skips the handshake when the bypass is enabled.
const DevBypassPaymentID = "dev_bypass"

// Authorization is either Bypassed or TokenAuthorized.
type Authorization interface {
	authorization()
}

type Bypassed struct{}

type TokenAuthorized struct {
	Payment *paymentdomain.PaymentRecord
}

func (Bypassed) authorization()        {}
func (TokenAuthorized) authorization() {}

// OwnerID is the user the authorized payment belongs to.
func OwnerID(a Authorization) string {
	if t, ok := a.(TokenAuthorized); ok && t.Payment != nil && t.Payment.UserID != "" {
		return t.Payment.UserID
	}
	return paymentdomain.AnonymousUserID
}

// PaymentID returns the authorized payment id, or empty for a bypass.
func PaymentID(a Authorization) string {
	if t, ok := a.(TokenAuthorized); ok && t.Payment != nil {
		return t.Payment.ID
	}
	return ""
}

type Authorizer interface {
	Authorize(ctx context.Context, paymentID, rawToken string) (Authorization, error)
	// BypassEnabled reports the startup decision for the dev bypass.
	BypassEnabled() bool
	// IsBypass reports whether paymentID selects the bypass under the current configuration.
	IsBypass(paymentID string) bool
}

type CreatePaymentRequest struct {
	UserEmail string
	AbsType   string
	Gender    string
}

type CreatePaymentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	PaymentToken    string `json:"paymentToken"`
}

type ConfirmResponse struct {
	PaymentIntentID  string               `json:"paymentIntentId"`
	Status           paymentdomain.Status `json:"status"`
	RemainingCredits int                  `json:"remainingCredits"`
}

type Service interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (CreatePaymentResponse, error)
	Confirm(ctx context.Context, paymentIntentID string) (ConfirmResponse, error)
	HandleWebhook(ctx context.Context, payload []byte, headers http.Header) error
}

// Intent is the processor's view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

type CreateIntentRequest struct {
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

// Processor creates and retrieves payment intents at the payment processor.
type Processor interface {
	Name() string
	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
}

// WebhookAdapter authenticates and decodes processor webhook deliveries.
type WebhookAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error)
}

// MapProcessorStatus folds processor intent states into record states.
func MapProcessorStatus(raw string) paymentdomain.Status {
	switch raw {
	case "succeeded":
		return paymentdomain.StatusSucceeded
	case "canceled":
		return paymentdomain.StatusFailed
	default:
		return paymentdomain.StatusPending
	}
}
