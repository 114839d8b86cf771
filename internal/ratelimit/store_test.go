package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/creditgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreBackend(t *testing.T) *StoreBackend {
	t.Helper()
	return NewStoreBackend(testutil.NewSQLiteDB(t, &UsageRecord{}))
}

func TestStoreBackendUseAndDeny(t *testing.T) {
	backend := newStoreBackend(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 6; i++ {
		decision, err := backend.Use(ctx, "fp_a", "ip_1", now, testPolicy)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		assert.Equal(t, 6-i, decision.Remaining)
	}

	decision, err := backend.Use(ctx, "fp_a", "ip_2", now, testPolicy)
	require.NoError(t, err)
	assert.Equal(t, Decision{Reason: ReasonFingerprintLimit}, decision)

	decision, err = backend.Check(ctx, "fp_b", "ip_1", now, testPolicy)
	require.NoError(t, err)
	assert.Equal(t, Decision{Reason: ReasonIPLimit}, decision)

	rec, err := backend.Usage(ctx, "ip_2")
	require.NoError(t, err)
	assert.Nil(t, rec, "denied use writes nothing")
}

func TestStoreBackendWindowReset(t *testing.T) {
	backend := newStoreBackend(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, backend.save(ctx, &UsageRecord{Key: "ip_1", CreditsUsed: 6, LastReset: now.Add(-25 * time.Hour)}))

	decision, err := backend.Use(ctx, "fp_new", "ip_1", now, testPolicy)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	rec, err := backend.Usage(ctx, "ip_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.CreditsUsed)
	assert.True(t, rec.LastReset.Equal(now))
	require.NotNil(t, rec.LastUsed)
	assert.True(t, rec.LastUsed.Equal(now))
}
