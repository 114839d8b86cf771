package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const (
	AnonymousUserID     = "anonymous"
	DefaultCreditsTotal = 6
)

// PaymentRecord is keyed by the processor's payment intent id. Records are
// never deleted and credits_used only grows.
type PaymentRecord struct {
	ID                   string            `json:"id" gorm:"primaryKey;size:191"`
	UserID               string            `json:"user_id" gorm:"type:text;not null"`
	UserEmail            *string           `json:"user_email,omitempty" gorm:"type:text"`
	Amount               int64             `json:"amount" gorm:"not null;default:0"`
	Currency             string            `json:"currency" gorm:"type:text;not null;default:usd"`
	Status               Status            `json:"status" gorm:"type:text;not null"`
	CreditsTotal         int               `json:"credits_total" gorm:"not null"`
	CreditsUsed          *int              `json:"credits_used"`
	AccessTokenHash      *string           `json:"-" gorm:"type:text"`
	AccessTokenExpiresAt *time.Time        `json:"-"`
	Metadata             datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt            time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time         `json:"updated_at" gorm:"not null"`
}

func (PaymentRecord) TableName() string { return "payments" }

// Used returns credits_used, treating an absent value as zero.
func (r PaymentRecord) Used() int {
	if r.CreditsUsed == nil {
		return 0
	}
	return *r.CreditsUsed
}

// Remaining returns max(credits_total - credits_used, 0).
func (r PaymentRecord) Remaining() int {
	remaining := r.CreditsTotal - r.Used()
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (r PaymentRecord) HasAccessToken() bool {
	return r.AccessTokenHash != nil && *r.AccessTokenHash != "" && r.AccessTokenExpiresAt != nil
}

// EventRecord stores processor webhook deliveries for idempotent handling.
type EventRecord struct {
	ID              int64          `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"size:191;not null;uniqueIndex:ux_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"size:191;not null;uniqueIndex:ux_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	PaymentID       string         `json:"payment_id" gorm:"size:191;not null;index"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// PaymentEvent is the canonical payment event parsed from processor webhooks.
type PaymentEvent struct {
	Provider          string
	ProviderEventID   string
	ProviderPaymentID string
	Type              string
	Amount            int64
	Currency          string
	OccurredAt        time.Time
	RawPayload        []byte
}

// Status maps the canonical event type onto the payment record status.
func (e PaymentEvent) Status() Status {
	if e.Type == EventTypePaymentSucceeded {
		return StatusSucceeded
	}
	return StatusFailed
}
