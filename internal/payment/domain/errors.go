package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConditionFailed  = errors.New("condition_failed")
	ErrPaymentNotFound  = errors.New("payment_not_found")
	ErrPaymentExists    = errors.New("payment_exists")
	ErrStoreUnavailable = errors.New("store_unavailable")
	ErrInvalidGuard     = errors.New("invalid_guard")
	ErrInvalidField     = errors.New("invalid_increment_field")
	ErrInvalidPayment   = errors.New("invalid_payment")

	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
)

// StoreUnavailable marks err as a transport or backend failure. It never
// satisfies errors.Is(ErrConditionFailed).
func StoreUnavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
