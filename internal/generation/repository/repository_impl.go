package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/creditgate/internal/generation/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func Provide(conn *gorm.DB) domain.Repository {
	return &repo{db: conn}
}

func (r *repo) CreateGeneration(ctx context.Context, generation *domain.Generation) error {
	return r.db.WithContext(ctx).Create(generation).Error
}

func (r *repo) CreateTrainingSample(ctx context.Context, sample *domain.TrainingSample) error {
	return r.db.WithContext(ctx).Create(sample).Error
}

func (r *repo) SetFeedback(ctx context.Context, id string, feedback domain.Feedback, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Generation{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"feedback":    feedback,
				"feedback_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrGenerationNotFound
		}
		// The sample row is optional; zero rows affected is fine.
		return tx.Model(&domain.TrainingSample{}).
			Where("id = ?", id).
			Update("feedback", feedback).Error
	})
}

func (r *repo) SetRating(ctx context.Context, id string, rating int, note *string, at time.Time) (*domain.Generation, error) {
	var out domain.Generation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Generation{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"user_rating":   rating,
				"user_feedback": note,
				"rated_at":      at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrGenerationNotFound
		}
		return tx.Where("id = ?", id).Take(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *repo) IncrementProviderUsage(ctx context.Context, provider, period string, amount int64, at time.Time) error {
	row := domain.ProviderUsage{
		Provider:   provider,
		Period:     period,
		UsageCount: amount,
		UpdatedAt:  at,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider"}, {Name: "period"}},
			DoUpdates: clause.Assignments(map[string]any{
				"usage_count": gorm.Expr("provider_usage.usage_count + ?", amount),
				"updated_at":  at,
			}),
		}).
		Create(&row).Error
}

func (r *repo) GetProviderUsage(ctx context.Context, provider, period string) (*domain.ProviderUsage, error) {
	var out domain.ProviderUsage
	err := r.db.WithContext(ctx).
		Where("provider = ? AND period = ?", provider, period).
		Take(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
