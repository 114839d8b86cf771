package domain

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonMissingPayment   Reason = "missing_payment"
	ReasonPendingPayment   Reason = "pending_payment"
	ReasonNoCredits        Reason = "no_credits"
	ReasonUnauthorized     Reason = "unauthorized"
	ReasonExpired          Reason = "expired"
	ReasonStoreUnavailable Reason = "store_unavailable"
	// ReasonCreditsUnavailable labels a refused reservation whose cause
	// could not be read back.
	ReasonCreditsUnavailable Reason = "credits_unavailable"
)

var (
	ErrMissingPaymentID = errors.New("missing_payment_id")

	ErrMissingPayment   = errors.New(string(ReasonMissingPayment))
	ErrPendingPayment   = errors.New(string(ReasonPendingPayment))
	ErrNoCredits        = errors.New(string(ReasonNoCredits))
	ErrUnauthorized     = errors.New(string(ReasonUnauthorized))
	ErrExpired          = errors.New(string(ReasonExpired))
	ErrStoreUnavailable = errors.New(string(ReasonStoreUnavailable))

	ErrCreditsUnavailable = errors.New(string(ReasonCreditsUnavailable))
)

var reasonErrors = map[Reason]error{
	ReasonMissingPayment:   ErrMissingPayment,
	ReasonPendingPayment:   ErrPendingPayment,
	ReasonNoCredits:        ErrNoCredits,
	ReasonUnauthorized:     ErrUnauthorized,
	ReasonExpired:          ErrExpired,
	ReasonStoreUnavailable: ErrStoreUnavailable,

	ReasonCreditsUnavailable: ErrCreditsUnavailable,
}

// CreditError is the typed failure of a reservation. It matches both the
// reason sentinel and the underlying store error with errors.Is.
type CreditError struct {
	Reason           Reason
	RemainingCredits int
	Err              error
}

func NewCreditError(reason Reason, remaining int, err error) *CreditError {
	return &CreditError{Reason: reason, RemainingCredits: remaining, Err: err}
}

func (e *CreditError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *CreditError) Unwrap() []error {
	out := make([]error, 0, 2)
	if sentinel, ok := reasonErrors[e.Reason]; ok {
		out = append(out, sentinel)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Retryable reports whether the same request may succeed without user action.
func (e *CreditError) Retryable() bool {
	return e.Reason == ReasonStoreUnavailable
}

// UserMessage is the user-facing explanation for the reason.
func (e *CreditError) UserMessage() string {
	return MessageFor(e.Reason)
}

func MessageFor(reason Reason) string {
	switch reason {
	case ReasonMissingPayment:
		return "Missing paymentId. Please complete payment to continue."
	case ReasonPendingPayment:
		return "Payment is not completed yet. Please complete payment to continue."
	case ReasonNoCredits:
		return "No credits remaining. Please purchase more credits to continue."
	case ReasonUnauthorized:
		return "Payment authorization failed. Please restart checkout."
	case ReasonExpired:
		return "Payment authorization expired. Please restart checkout."
	case ReasonStoreUnavailable:
		return "Credits are temporarily unavailable. Please retry."
	case ReasonCreditsUnavailable:
		return "No credits remaining or payment not confirmed. Please complete payment to continue."
	default:
		return "Unable to use credits."
	}
}
