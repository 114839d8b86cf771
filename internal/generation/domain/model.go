package domain

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type Feedback string

const (
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
)

func (f Feedback) Valid() bool {
	return f == FeedbackLike || f == FeedbackDislike
}

// Generation is a saved provider output.
type Generation struct {
	ID             string            `json:"id" gorm:"primaryKey;size:191"`
	UserID         string            `json:"user_id" gorm:"size:191;not null;index"`
	AbsType        string            `json:"abs_type" gorm:"type:text"`
	Gender         *string           `json:"gender" gorm:"type:text"`
	InputImageURL  *string           `json:"input_image_url" gorm:"type:text"`
	MaskImageURL   *string           `json:"mask_image_url" gorm:"type:text"`
	OutputImageURL string            `json:"output_image_url" gorm:"type:text;not null"`
	ModelUsed      string            `json:"model_used" gorm:"type:text"`
	PromptUsed     string            `json:"prompt_used" gorm:"type:text"`
	Strength       *float64          `json:"strength"`
	Seed           *int64            `json:"seed"`
	PaymentID      *string           `json:"payment_id" gorm:"size:191;index"`
	UserRating     int               `json:"user_rating" gorm:"not null;default:0"`
	UserFeedback   *string           `json:"user_feedback" gorm:"type:text"`
	RatedAt        *time.Time        `json:"rated_at"`
	Feedback       *Feedback         `json:"feedback" gorm:"type:text"`
	FeedbackAt     *time.Time        `json:"feedback_timestamp"`
	Params         datatypes.JSONMap `json:"generation_params"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null"`
}

func (Generation) TableName() string { return "generations" }

// TrainingSample mirrors a generation for dataset export.
type TrainingSample struct {
	ID             string    `json:"id" gorm:"primaryKey;size:191"`
	InputImageURL  *string   `json:"input_image_url" gorm:"type:text"`
	MaskURL        *string   `json:"mask_url" gorm:"type:text"`
	OutputImageURL string    `json:"output_image_url" gorm:"type:text;not null"`
	Prompt         string    `json:"prompt" gorm:"type:text"`
	Strength       *float64  `json:"strength"`
	Seed           *int64    `json:"seed"`
	Provider       string    `json:"provider" gorm:"type:text"`
	AbsType        string    `json:"abs_type" gorm:"type:text"`
	Feedback       *Feedback `json:"feedback" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null"`
}

func (TrainingSample) TableName() string { return "training_samples" }

// ProviderUsage counts provider calls per calendar month.
type ProviderUsage struct {
	Provider   string    `json:"provider" gorm:"primaryKey;size:191"`
	Period     string    `json:"period" gorm:"primaryKey;size:191"`
	UsageCount int64     `json:"usage_count" gorm:"not null;default:0"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"not null"`
}

func (ProviderUsage) TableName() string { return "provider_usage" }

// UsagePeriod formats t as YYYY-MM in UTC.
func UsagePeriod(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%04d-%02d", u.Year(), int(u.Month()))
}

type Repository interface {
	CreateGeneration(ctx context.Context, generation *Generation) error
	CreateTrainingSample(ctx context.Context, sample *TrainingSample) error
	// SetFeedback fails with ErrGenerationNotFound when no generation matched.
	SetFeedback(ctx context.Context, id string, feedback Feedback, at time.Time) error
	SetRating(ctx context.Context, id string, rating int, note *string, at time.Time) (*Generation, error)
	IncrementProviderUsage(ctx context.Context, provider, period string, amount int64, at time.Time) error
	GetProviderUsage(ctx context.Context, provider, period string) (*ProviderUsage, error)
}
