package domain

import (
	"errors"
	"testing"

	paymentdomain "github.com/smallbiznis/creditgate/internal/payment/domain"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestEnsurePaymentHasCredits(t *testing.T) {
	tests := []struct {
		name   string
		record *paymentdomain.PaymentRecord
		want   Evaluation
	}{
		{
			name: "missing",
			want: Evaluation{Reason: ReasonMissingPayment},
		},
		{
			name:   "pending keeps remaining",
			record: &paymentdomain.PaymentRecord{Status: paymentdomain.StatusPending, CreditsTotal: 6, CreditsUsed: intPtr(0)},
			want:   Evaluation{Reason: ReasonPendingPayment, RemainingCredits: 6},
		},
		{
			name:   "failed is pending_payment",
			record: &paymentdomain.PaymentRecord{Status: paymentdomain.StatusFailed, CreditsTotal: 6},
			want:   Evaluation{Reason: ReasonPendingPayment, RemainingCredits: 6},
		},
		{
			name:   "exhausted",
			record: &paymentdomain.PaymentRecord{Status: paymentdomain.StatusSucceeded, CreditsTotal: 6, CreditsUsed: intPtr(6)},
			want:   Evaluation{Reason: ReasonNoCredits, RemainingCredits: 0},
		},
		{
			name:   "ok",
			record: &paymentdomain.PaymentRecord{Status: paymentdomain.StatusSucceeded, CreditsTotal: 6, CreditsUsed: intPtr(2)},
			want:   Evaluation{OK: true, RemainingCredits: 4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EnsurePaymentHasCredits(tt.record))
		})
	}
}

func TestRequirePaymentID(t *testing.T) {
	_, err := RequirePaymentID("")
	assert.ErrorIs(t, err, ErrMissingPaymentID)
	_, err = RequirePaymentID("   ")
	assert.ErrorIs(t, err, ErrMissingPaymentID)

	id, err := RequirePaymentID(" pi_1 ")
	assert.NoError(t, err)
	assert.Equal(t, "pi_1", id)
}

func TestCreditErrorMatching(t *testing.T) {
	err := error(NewCreditError(ReasonNoCredits, 0, paymentdomain.ErrConditionFailed))

	assert.ErrorIs(t, err, ErrNoCredits)
	assert.ErrorIs(t, err, paymentdomain.ErrConditionFailed)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)

	var ce *CreditError
	assert.True(t, errors.As(err, &ce))
	assert.False(t, ce.Retryable())
	assert.Contains(t, ce.UserMessage(), "purchase more credits")

	unavailable := NewCreditError(ReasonStoreUnavailable, 0, paymentdomain.StoreUnavailable(errors.New("timeout")))
	assert.True(t, unavailable.Retryable())
	assert.ErrorIs(t, unavailable, paymentdomain.ErrStoreUnavailable)
	assert.NotErrorIs(t, unavailable, paymentdomain.ErrConditionFailed)
}
