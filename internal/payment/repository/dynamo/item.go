package dynamo

import (
	"time"

	"github.com/smallbiznis/creditgate/internal/payment/domain"
	"gorm.io/datatypes"
)

// item is the DynamoDB shape of a payment record. Attribute names match the
// table layout used by the existing deployment.
type item struct {
	ID                   string         `dynamodbav:"id"`
	UserID               string         `dynamodbav:"user_id"`
	UserEmail            *string        `dynamodbav:"user_email,omitempty"`
	StripePaymentID      string         `dynamodbav:"stripe_payment_intent_id"`
	Status               string         `dynamodbav:"stripe_payment_status"`
	Amount               int64          `dynamodbav:"amount"`
	Currency             string         `dynamodbav:"currency"`
	CreditsTotal         *int           `dynamodbav:"credits_total,omitempty"`
	CreditsUsed          *int           `dynamodbav:"credits_used,omitempty"`
	AccessTokenHash      *string        `dynamodbav:"payment_access_token_hash,omitempty"`
	AccessTokenExpiresAt *time.Time     `dynamodbav:"payment_access_token_expires_at,omitempty"`
	Metadata             map[string]any `dynamodbav:"metadata,omitempty"`
	CreatedAt            time.Time      `dynamodbav:"created_at"`
	UpdatedAt            time.Time      `dynamodbav:"updated_at"`
}

func fromRecord(r *domain.PaymentRecord) item {
	total := r.CreditsTotal
	return item{
		ID:                   r.ID,
		UserID:               r.UserID,
		UserEmail:            r.UserEmail,
		StripePaymentID:      r.ID,
		Status:               string(r.Status),
		Amount:               r.Amount,
		Currency:             r.Currency,
		CreditsTotal:         &total,
		CreditsUsed:          r.CreditsUsed,
		AccessTokenHash:      r.AccessTokenHash,
		AccessTokenExpiresAt: r.AccessTokenExpiresAt,
		Metadata:             map[string]any(r.Metadata),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func (i item) toRecord() *domain.PaymentRecord {
	rec := &domain.PaymentRecord{
		ID:                   i.ID,
		UserID:               i.UserID,
		UserEmail:            i.UserEmail,
		Status:               normalizeStatus(i.Status),
		Amount:               i.Amount,
		Currency:             i.Currency,
		CreditsUsed:          i.CreditsUsed,
		AccessTokenHash:      i.AccessTokenHash,
		AccessTokenExpiresAt: i.AccessTokenExpiresAt,
		Metadata:             datatypes.JSONMap(i.Metadata),
		CreatedAt:            i.CreatedAt,
		UpdatedAt:            i.UpdatedAt,
	}
	if i.CreditsTotal != nil {
		rec.CreditsTotal = *i.CreditsTotal
	}
	if rec.UserID == "" {
		rec.UserID = domain.AnonymousUserID
	}
	return rec
}

// normalizeStatus folds raw processor statuses written by older writers into
// the three record states.
func normalizeStatus(raw string) domain.Status {
	switch domain.Status(raw) {
	case domain.StatusSucceeded:
		return domain.StatusSucceeded
	case domain.StatusFailed:
		return domain.StatusFailed
	default:
		return domain.StatusPending
	}
}
