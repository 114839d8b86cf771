package domain

import (
	"context"
	"time"
)

// Repository is the payment record store. Each implementation must evaluate
// the guard and apply the increment as one atomic operation.
type Repository interface {
	// Get returns nil, nil when the record is absent.
	Get(ctx context.Context, id string) (*PaymentRecord, error)
	// Put creates a record. It fails with ErrPaymentExists on duplicate ids.
	Put(ctx context.Context, record *PaymentRecord) error
	// ConditionalIncrement adds one to field when guard holds and returns the
	// post-increment record. A failed guard or absent record yields ErrConditionFailed.
	ConditionalIncrement(ctx context.Context, id string, field Field, guard Guard) (*PaymentRecord, error)
	// SetStatus writes the processor status and fills credits_total when it is missing.
	// A succeeded record keeps its status.
	SetStatus(ctx context.Context, id string, status Status, defaultCreditsTotal int) (*PaymentRecord, error)
}

// EventRepository records processor webhook deliveries.
type EventRepository interface {
	// InsertEvent returns false when the delivery was already recorded.
	InsertEvent(ctx context.Context, event *EventRecord) (bool, error)
	// FindEvent returns nil when no delivery was recorded for the pair.
	FindEvent(ctx context.Context, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, id int64, processedAt time.Time) error
}
