package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestReserveGuardHolds(t *testing.T) {
	guard := ReserveGuard()

	tests := []struct {
		name   string
		record *PaymentRecord
		want   bool
	}{
		{"nil record", nil, false},
		{"succeeded without credits_used", &PaymentRecord{Status: StatusSucceeded, CreditsTotal: 6}, true},
		{"succeeded with balance", &PaymentRecord{Status: StatusSucceeded, CreditsTotal: 6, CreditsUsed: intPtr(5)}, true},
		{"succeeded exhausted", &PaymentRecord{Status: StatusSucceeded, CreditsTotal: 6, CreditsUsed: intPtr(6)}, false},
		{"pending", &PaymentRecord{Status: StatusPending, CreditsTotal: 6, CreditsUsed: intPtr(0)}, false},
		{"failed", &PaymentRecord{Status: StatusFailed, CreditsTotal: 6}, false},
		{"zero total", &PaymentRecord{Status: StatusSucceeded, CreditsTotal: 0, CreditsUsed: intPtr(0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.Holds(tt.record))
		})
	}
}

func TestGuardValidate(t *testing.T) {
	assert.NoError(t, ReserveGuard().Validate())
	assert.ErrorIs(t, Guard{{Field: FieldCreditsTotal, Op: OpEq, Value: StatusSucceeded}}.Validate(), ErrInvalidGuard)
	assert.ErrorIs(t, Guard{{Field: FieldStatus, Op: OpEq, Value: "succeeded"}}.Validate(), ErrInvalidGuard)
	assert.ErrorIs(t, Guard{{Field: FieldStatus, Op: Op(42)}}.Validate(), ErrInvalidGuard)
}

func TestRecordRemaining(t *testing.T) {
	assert.Equal(t, 6, PaymentRecord{CreditsTotal: 6}.Remaining())
	assert.Equal(t, 0, PaymentRecord{CreditsTotal: 6, CreditsUsed: intPtr(9)}.Remaining())
	assert.Equal(t, 1, PaymentRecord{CreditsTotal: 6, CreditsUsed: intPtr(5)}.Remaining())
}

func TestStoreUnavailableNeverConditionFailed(t *testing.T) {
	err := StoreUnavailable(errors.New("dial tcp: timeout"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, errors.Is(err, ErrConditionFailed))
	assert.Nil(t, StoreUnavailable(nil))
	assert.Same(t, err, StoreUnavailable(err))
}
