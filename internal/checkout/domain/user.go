package domain

import (
	"context"
	"time"
)

// User is keyed by email. Checkout creates it on first purchase.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;size:191"`
	Email     string    `json:"email" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (User) TableName() string { return "users" }

type UserRepository interface {
	// EnsureUser returns the existing user id for email, creating the row when absent.
	EnsureUser(ctx context.Context, email string, now time.Time) (string, error)
}
