package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/creditgate/internal/payment/domain"
	"github.com/smallbiznis/creditgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func newRepo(t *testing.T) *repo {
	t.Helper()
	conn := testutil.NewSQLiteDB(t, &domain.PaymentRecord{}, &domain.EventRecord{})
	return &repo{db: conn}
}

func seed(t *testing.T, r *repo, rec domain.PaymentRecord) {
	t.Helper()
	require.NoError(t, r.Put(context.Background(), &rec))
}

func TestRepo_GetAbsent(t *testing.T) {
	r := newRepo(t)
	got, err := r.Get(context.Background(), "pi_missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepo_PutDuplicate(t *testing.T) {
	r := newRepo(t)
	seed(t, r, domain.PaymentRecord{ID: "pi_1", UserID: "anonymous", Status: domain.StatusPending, CreditsTotal: 6})

	err := r.Put(context.Background(), &domain.PaymentRecord{ID: "pi_1", UserID: "u", Status: domain.StatusPending, CreditsTotal: 6})
	assert.ErrorIs(t, err, domain.ErrPaymentExists)
	assert.ErrorIs(t, r.Put(context.Background(), &domain.PaymentRecord{}), domain.ErrInvalidPayment)
}

func TestRepo_ConditionalIncrement_LastCredit(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seed(t, r, domain.PaymentRecord{ID: "p1", UserID: "anonymous", Status: domain.StatusSucceeded, CreditsTotal: 6, CreditsUsed: intPtr(5)})

	rec, err := r.ConditionalIncrement(ctx, "p1", domain.FieldCreditsUsed, domain.ReserveGuard())
	require.NoError(t, err)
	assert.Equal(t, 6, rec.Used())
	assert.Equal(t, 0, rec.Remaining())

	_, err = r.ConditionalIncrement(ctx, "p1", domain.FieldCreditsUsed, domain.ReserveGuard())
	assert.ErrorIs(t, err, domain.ErrConditionFailed)

	after, err := r.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 6, after.Used())
}

func TestRepo_ConditionalIncrement_AbsentCreditsUsed(t *testing.T) {
	r := newRepo(t)
	seed(t, r, domain.PaymentRecord{ID: "p0", UserID: "anonymous", Status: domain.StatusSucceeded, CreditsTotal: 6})

	rec, err := r.ConditionalIncrement(context.Background(), "p0", domain.FieldCreditsUsed, domain.ReserveGuard())
	require.NoError(t, err)
	require.NotNil(t, rec.CreditsUsed)
	assert.Equal(t, 1, *rec.CreditsUsed)
	assert.Equal(t, 5, rec.Remaining())
}

func TestRepo_ConditionalIncrement_PendingAndMissing(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seed(t, r, domain.PaymentRecord{ID: "p2", UserID: "anonymous", Status: domain.StatusPending, CreditsTotal: 6, CreditsUsed: intPtr(0)})

	_, err := r.ConditionalIncrement(ctx, "p2", domain.FieldCreditsUsed, domain.ReserveGuard())
	assert.ErrorIs(t, err, domain.ErrConditionFailed)

	_, err = r.ConditionalIncrement(ctx, "nope", domain.FieldCreditsUsed, domain.ReserveGuard())
	assert.ErrorIs(t, err, domain.ErrConditionFailed)

	_, err = r.ConditionalIncrement(ctx, "p2", domain.FieldCreditsTotal, domain.ReserveGuard())
	assert.ErrorIs(t, err, domain.ErrInvalidField)
}

func TestRepo_ConditionalIncrement_Concurrent(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	const total, attempts = 6, 20
	seed(t, r, domain.PaymentRecord{ID: "pc", UserID: "anonymous", Status: domain.StatusSucceeded, CreditsTotal: total, CreditsUsed: intPtr(0)})

	var ok, denied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ConditionalIncrement(ctx, "pc", domain.FieldCreditsUsed, domain.ReserveGuard())
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, domain.ErrConditionFailed):
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(total), ok.Load())
	assert.Equal(t, int32(attempts-total), denied.Load())

	rec, err := r.Get(ctx, "pc")
	require.NoError(t, err)
	assert.Equal(t, total, rec.Used())
}

func TestRepo_SetStatus(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seed(t, r, domain.PaymentRecord{ID: "ps", UserID: "anonymous", Status: domain.StatusPending, CreditsTotal: 6})

	rec, err := r.SetStatus(ctx, "ps", domain.StatusSucceeded, 6)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, rec.Status)
	assert.Equal(t, 6, rec.CreditsTotal)

	rec, err = r.SetStatus(ctx, "ps", domain.StatusFailed, 6)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, rec.Status, "succeeded is terminal")

	_, err = r.SetStatus(ctx, "missing", domain.StatusSucceeded, 6)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestRepo_ClosedDatabaseIsStoreUnavailable(t *testing.T) {
	r := newRepo(t)
	sqlDB, err := r.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = r.ConditionalIncrement(context.Background(), "p1", domain.FieldCreditsUsed, domain.ReserveGuard())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrConditionFailed)

	_, err = r.Get(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestEventRepo_InsertIsIdempotent(t *testing.T) {
	conn := testutil.NewSQLiteDB(t, &domain.EventRecord{})
	events := ProvideEvents(conn)
	ctx := context.Background()

	event := &domain.EventRecord{
		ID:              1,
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventType:       domain.EventTypePaymentSucceeded,
		PaymentID:       "pi_1",
		Payload:         []byte(`{}`),
		ReceivedAt:      time.Now().UTC(),
	}
	inserted, err := events.InsertEvent(ctx, event)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *event
	dup.ID = 2
	inserted, err = events.InsertEvent(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, err := events.FindEvent(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(1), stored.ID)
	assert.Nil(t, stored.ProcessedAt)

	require.NoError(t, events.MarkProcessed(ctx, 1, time.Now().UTC()))
	stored, err = events.FindEvent(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.NotNil(t, stored.ProcessedAt)

	missing, err := events.FindEvent(ctx, "stripe", "evt_none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGuardClause(t *testing.T) {
	where, args, err := guardClause(domain.ReserveGuard())
	require.NoError(t, err)
	assert.Equal(t, "status = ? AND (credits_used IS NULL OR credits_used < credits_total)", where)
	assert.Equal(t, []any{"succeeded"}, args)
}
