package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/creditgate/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type eventRepo struct {
	db *gorm.DB
}

func ProvideEvents(conn *gorm.DB) domain.EventRepository {
	return &eventRepo{db: conn}
}

func (r *eventRepo) InsertEvent(ctx context.Context, event *domain.EventRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, domain.StoreUnavailable(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *eventRepo) FindEvent(ctx context.Context, provider, providerEventID string) (*domain.EventRecord, error) {
	var event domain.EventRecord
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, providerEventID).
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StoreUnavailable(err)
	}
	return &event, nil
}

func (r *eventRepo) MarkProcessed(ctx context.Context, id int64, processedAt time.Time) error {
	err := r.db.WithContext(ctx).Exec(
		`UPDATE payment_events
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
	return domain.StoreUnavailable(err)
}
