package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/internal/payment/domain"
	"github.com/smallbiznis/creditgate/pkg/db"
	"gorm.io/gorm"
)

const backend = "database"

type repo struct {
	db      *gorm.DB
	metrics *metrics.StoreMetrics
}

func Provide(conn *gorm.DB, m *metrics.StoreMetrics) domain.Repository {
	return &repo{db: conn, metrics: m}
}

const selectPayment = `SELECT id, user_id, user_email, amount, currency, status, credits_total, credits_used,
	access_token_hash, access_token_expires_at, metadata, created_at, updated_at
 FROM payments
 WHERE id = ?
 LIMIT 1`

func (r *repo) Get(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	start := time.Now()
	item, err := r.get(ctx, r.db, id)
	if err != nil {
		err = domain.StoreUnavailable(err)
	}
	r.metrics.Track(backend, "get", start, err)
	return item, err
}

func (r *repo) get(ctx context.Context, tx *gorm.DB, id string) (*domain.PaymentRecord, error) {
	var item domain.PaymentRecord
	if err := tx.WithContext(ctx).Raw(selectPayment, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Put(ctx context.Context, record *domain.PaymentRecord) error {
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return domain.ErrInvalidPayment
	}
	start := time.Now()
	err := r.db.WithContext(ctx).Create(record).Error
	switch {
	case err == nil:
	case db.IsDuplicateKeyErr(err):
		err = domain.ErrPaymentExists
	default:
		err = domain.StoreUnavailable(err)
	}
	r.metrics.Track(backend, "put", start, storeErr(err))
	return err
}

func (r *repo) ConditionalIncrement(ctx context.Context, id string, field domain.Field, guard domain.Guard) (*domain.PaymentRecord, error) {
	if field != domain.FieldCreditsUsed {
		return nil, domain.ErrInvalidField
	}
	where, args, err := guardClause(guard)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var out *domain.PaymentRecord
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		params := append([]any{time.Now().UTC(), id}, args...)
		res := tx.Exec(
			`UPDATE payments
			 SET credits_used = COALESCE(credits_used, 0) + 1, updated_at = ?
			 WHERE id = ? AND `+where,
			params...,
		)
		if res.Error != nil {
			// The payments CHECK constraint caps credits_used at credits_total
			// even for guards that do not.
			if db.IsCheckViolation(res.Error) {
				return domain.ErrConditionFailed
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConditionFailed
		}
		item, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return errors.New("payment vanished after increment")
		}
		out = item
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrConditionFailed) {
		err = domain.StoreUnavailable(err)
	}
	r.metrics.Track(backend, "conditional_increment", start, storeErr(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) SetStatus(ctx context.Context, id string, status domain.Status, defaultCreditsTotal int) (*domain.PaymentRecord, error) {
	start := time.Now()
	var out *domain.PaymentRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := `UPDATE payments
			 SET status = ?, credits_total = COALESCE(credits_total, ?), updated_at = ?
			 WHERE id = ?`
		args := []any{string(status), defaultCreditsTotal, time.Now().UTC(), id}
		if status != domain.StatusSucceeded {
			query += ` AND status <> ?`
			args = append(args, string(domain.StatusSucceeded))
		}
		if err := tx.Exec(query, args...).Error; err != nil {
			return err
		}
		item, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrPaymentNotFound
		}
		out = item
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		err = domain.StoreUnavailable(err)
	}
	r.metrics.Track(backend, "set_status", start, storeErr(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// guardClause renders guard as a SQL boolean expression over the payments row.
func guardClause(guard domain.Guard) (string, []any, error) {
	if err := guard.Validate(); err != nil {
		return "", nil, err
	}
	if len(guard) == 0 {
		return "1 = 1", nil, nil
	}
	clauses := make([]string, 0, len(guard))
	args := make([]any, 0, len(guard))
	for _, p := range guard {
		switch p.Op {
		case domain.OpEq:
			clauses = append(clauses, string(p.Field)+" = ?")
			args = append(args, string(p.Value.(domain.Status)))
		case domain.OpAbsentOrLessThanField:
			clauses = append(clauses, "("+string(p.Field)+" IS NULL OR "+string(p.Field)+" < "+string(p.Other)+")")
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

func storeErr(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return nil
}
