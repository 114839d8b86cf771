package domain

import (
	"context"
	"strings"

	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
)

// Evaluation is the advisory view of a payment's credits. It never decides a spend.
type Evaluation struct {
	OK               bool   `json:"ok"`
	Reason           Reason `json:"reason,omitempty"`
	RemainingCredits int    `json:"remainingCredits"`
}

type Reservation struct {
	PaymentID        string `json:"paymentId"`
	RemainingCredits int    `json:"remainingCredits"`
}

type Service interface {
	// ReserveCredit spends one credit atomically or fails with *CreditError.
	ReserveCredit(ctx context.Context, paymentID string) (Reservation, error)
	// Check reads the record and evaluates it without mutating anything.
	Check(ctx context.Context, paymentID string) (Evaluation, error)
}

// RemainingCredits returns max(total - used, 0), or 0 for an absent record.
func RemainingCredits(record *paymentdomain.PaymentRecord) int {
	if record == nil {
		return 0
	}
	return record.Remaining()
}

// EnsurePaymentHasCredits evaluates a record without touching the store.
func EnsurePaymentHasCredits(record *paymentdomain.PaymentRecord) Evaluation {
	if record == nil {
		return Evaluation{OK: false, Reason: ReasonMissingPayment, RemainingCredits: 0}
	}

	remaining := RemainingCredits(record)
	if record.Status != paymentdomain.StatusSucceeded {
		return Evaluation{OK: false, Reason: ReasonPendingPayment, RemainingCredits: remaining}
	}
	if remaining <= 0 {
		return Evaluation{OK: false, Reason: ReasonNoCredits, RemainingCredits: remaining}
	}
	return Evaluation{OK: true, RemainingCredits: remaining}
}

// RequirePaymentID rejects blank identifiers before any store call.
func RequirePaymentID(paymentID string) (string, error) {
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return "", ErrMissingPaymentID
	}
	return id, nil
}
