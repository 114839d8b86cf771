// Package boltstore stores payment records in an embedded BoltDB file. Every
// mutation runs inside a single read-write transaction, and BoltDB admits one
// writer at a time, so guard evaluation and increment cannot interleave.
package boltstore

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/internal/payment/domain"
	"gorm.io/datatypes"
)

const (
	backend    = "bolt"
	bucketName = "payments"
)

type record struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"user_id"`
	UserEmail            *string        `json:"user_email,omitempty"`
	Status               string         `json:"status"`
	Amount               int64          `json:"amount"`
	Currency             string         `json:"currency"`
	CreditsTotal         int            `json:"credits_total"`
	CreditsUsed          *int           `json:"credits_used,omitempty"`
	AccessTokenHash      *string        `json:"access_token_hash,omitempty"`
	AccessTokenExpiresAt *time.Time     `json:"access_token_expires_at,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func fromDomain(r *domain.PaymentRecord) record {
	return record{
		ID:                   r.ID,
		UserID:               r.UserID,
		UserEmail:            r.UserEmail,
		Status:               string(r.Status),
		Amount:               r.Amount,
		Currency:             r.Currency,
		CreditsTotal:         r.CreditsTotal,
		CreditsUsed:          r.CreditsUsed,
		AccessTokenHash:      r.AccessTokenHash,
		AccessTokenExpiresAt: r.AccessTokenExpiresAt,
		Metadata:             map[string]any(r.Metadata),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func (r record) toDomain() *domain.PaymentRecord {
	return &domain.PaymentRecord{
		ID:                   r.ID,
		UserID:               r.UserID,
		UserEmail:            r.UserEmail,
		Status:               domain.Status(r.Status),
		Amount:               r.Amount,
		Currency:             r.Currency,
		CreditsTotal:         r.CreditsTotal,
		CreditsUsed:          r.CreditsUsed,
		AccessTokenHash:      r.AccessTokenHash,
		AccessTokenExpiresAt: r.AccessTokenExpiresAt,
		Metadata:             datatypes.JSONMap(r.Metadata),
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

type Repository struct {
	db      *bolt.DB
	metrics *metrics.StoreMetrics
}

var _ domain.Repository = (*Repository)(nil)

// Open opens (or creates) the database at path and ensures the bucket exists.
func Open(path string, m *metrics.StoreMetrics) (*Repository, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db, metrics: m}, nil
}

// Close releases the database file lock.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Get(ctx context.Context, id string) (*domain.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreUnavailable(err)
	}
	start := time.Now()
	var out *domain.PaymentRecord
	err := r.db.View(func(tx *bolt.Tx) error {
		rec, err := load(tx, id)
		out = rec
		return err
	})
	if err != nil {
		err = domain.StoreUnavailable(err)
	}
	r.metrics.Track(backend, "get", start, err)
	return out, err
}

func (r *Repository) Put(ctx context.Context, rec *domain.PaymentRecord) error {
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return domain.ErrInvalidPayment
	}
	if err := ctx.Err(); err != nil {
		return domain.StoreUnavailable(err)
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	start := time.Now()
	err := r.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(bucketName)).Get([]byte(rec.ID)) != nil {
			return domain.ErrPaymentExists
		}
		return store(tx, rec)
	})
	if err != nil && err != domain.ErrPaymentExists {
		err = domain.StoreUnavailable(err)
	}
	r.metrics.Track(backend, "put", start, nonDomain(err))
	return err
}

func (r *Repository) ConditionalIncrement(ctx context.Context, id string, field domain.Field, guard domain.Guard) (*domain.PaymentRecord, error) {
	if field != domain.FieldCreditsUsed {
		return nil, domain.ErrInvalidField
	}
	if err := guard.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreUnavailable(err)
	}

	start := time.Now()
	var out *domain.PaymentRecord
	err := r.db.Update(func(tx *bolt.Tx) error {
		rec, err := load(tx, id)
		if err != nil {
			return err
		}
		if !guard.Holds(rec) {
			return domain.ErrConditionFailed
		}
		next := rec.Used() + 1
		rec.CreditsUsed = &next
		rec.UpdatedAt = time.Now().UTC()
		if err := store(tx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil && err != domain.ErrConditionFailed {
		err = domain.StoreUnavailable(err)
	}
	r.metrics.Track(backend, "conditional_increment", start, nonDomain(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) SetStatus(ctx context.Context, id string, status domain.Status, defaultCreditsTotal int) (*domain.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreUnavailable(err)
	}
	start := time.Now()
	var out *domain.PaymentRecord
	err := r.db.Update(func(tx *bolt.Tx) error {
		rec, err := load(tx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return domain.ErrPaymentNotFound
		}
		out = rec
		if rec.Status == domain.StatusSucceeded && status != domain.StatusSucceeded {
			return nil
		}
		rec.Status = status
		if rec.CreditsTotal == 0 {
			rec.CreditsTotal = defaultCreditsTotal
		}
		rec.UpdatedAt = time.Now().UTC()
		return store(tx, rec)
	})
	if err != nil && err != domain.ErrPaymentNotFound {
		err = domain.StoreUnavailable(err)
	}
	r.metrics.Track(backend, "set_status", start, nonDomain(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func load(tx *bolt.Tx, id string) (*domain.PaymentRecord, error) {
	v := tx.Bucket([]byte(bucketName)).Get([]byte(id))
	if v == nil {
		return nil, nil
	}
	var rec record
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

func store(tx *bolt.Tx, rec *domain.PaymentRecord) error {
	data, err := json.Marshal(fromDomain(rec))
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucketName)).Put([]byte(rec.ID), data)
}

func nonDomain(err error) error {
	switch err {
	case nil, domain.ErrConditionFailed, domain.ErrPaymentExists, domain.ErrPaymentNotFound:
		return nil
	default:
		return err
	}
}
