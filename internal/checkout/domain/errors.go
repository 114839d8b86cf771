package domain

import (
	"errors"

	creditdomain "github.com/smallbiznis/creditgate/internal/credit/domain"
)

var (
	ErrMissingToken      = errors.New("missing_token")
	ErrPaymentNotFound   = errors.New("payment_not_found")
	ErrNotSucceeded      = errors.New("not_succeeded")
	ErrMissingIntentID   = errors.New("missing_payment_intent_id")
	ErrProcessorFailure  = errors.New("processor_failure")
	ErrProcessorDisabled = errors.New("processor_not_configured")
)

// Shared with the credit ledger so both map to one response.
var (
	ErrMissingPaymentID = creditdomain.ErrMissingPaymentID
	ErrUnauthorized     = creditdomain.ErrUnauthorized
	ErrExpired          = creditdomain.ErrExpired
)

// IsRetryable reports whether the caller should retry the same request later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotSucceeded)
}
