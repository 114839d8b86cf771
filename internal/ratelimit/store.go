package ratelimit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreBackend keeps usage rows in the relational database. Reads and writes
// are separate statements, so two concurrent uses may both pass a cap that
// only one of them should. Deploy the redis backend where that matters.
type StoreBackend struct {
	db *gorm.DB
}

func NewStoreBackend(conn *gorm.DB) *StoreBackend {
	return &StoreBackend{db: conn}
}

func (b *StoreBackend) Name() string { return "database" }

func (b *StoreBackend) Check(ctx context.Context, fpKey, ipKey string, now time.Time, policy Policy) (Decision, error) {
	if err := policy.validate(); err != nil {
		return Decision{}, err
	}
	fp, ip, err := b.load(ctx, fpKey, ipKey, now, policy.Window)
	if err != nil {
		return Decision{}, err
	}
	return Decide(fp.CreditsUsed, ip.CreditsUsed, policy.Cap), nil
}

func (b *StoreBackend) Use(ctx context.Context, fpKey, ipKey string, now time.Time, policy Policy) (Decision, error) {
	if err := policy.validate(); err != nil {
		return Decision{}, err
	}
	fp, ip, err := b.load(ctx, fpKey, ipKey, now, policy.Window)
	if err != nil {
		return Decision{}, err
	}
	decision := Decide(fp.CreditsUsed, ip.CreditsUsed, policy.Cap)
	if !decision.Allowed {
		return decision, nil
	}

	fp.CreditsUsed++
	fp.LastUsed = &now
	ip.CreditsUsed++
	ip.LastUsed = &now

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.save(gctx, &fp) })
	g.Go(func() error { return b.save(gctx, &ip) })
	if err := g.Wait(); err != nil {
		return Decision{}, err
	}

	decision.Remaining = remaining(fp.CreditsUsed, ip.CreditsUsed, policy.Cap)
	return decision, nil
}

func (b *StoreBackend) load(ctx context.Context, fpKey, ipKey string, now time.Time, window time.Duration) (UsageRecord, UsageRecord, error) {
	var fpRaw, ipRaw *UsageRecord
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := b.get(gctx, fpKey)
		fpRaw = rec
		return err
	})
	g.Go(func() error {
		rec, err := b.get(gctx, ipKey)
		ipRaw = rec
		return err
	})
	if err := g.Wait(); err != nil {
		return UsageRecord{}, UsageRecord{}, err
	}
	return EffectiveUsage(fpRaw, fpKey, now, window), EffectiveUsage(ipRaw, ipKey, now, window), nil
}

func (b *StoreBackend) get(ctx context.Context, key string) (*UsageRecord, error) {
	var rec UsageRecord
	err := b.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (b *StoreBackend) save(ctx context.Context, rec *UsageRecord) error {
	return b.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"credits_used", "last_reset", "last_used"}),
		}).
		Create(rec).Error
}

// Usage returns the stored row for key, or nil when absent.
func (b *StoreBackend) Usage(ctx context.Context, key string) (*UsageRecord, error) {
	return b.get(ctx, key)
}
