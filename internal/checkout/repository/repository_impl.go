package repository

import (
	"context"
	"strings"
	"time"

	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db *gorm.DB
}

func Provide(conn *gorm.DB) checkoutdomain.UserRepository {
	return &repo{db: conn}
}

func (r *repo) EnsureUser(ctx context.Context, email string, now time.Time) (string, error) {
	email = strings.TrimSpace(email)
	user := checkoutdomain.User{
		ID:        email,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&user).Error
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
