package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/creditgate/internal/generation/domain"
	"github.com/smallbiznis/creditgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) domain.Repository {
	t.Helper()
	conn := testutil.NewSQLiteDB(t, &domain.Generation{}, &domain.TrainingSample{}, &domain.ProviderUsage{})
	return Provide(conn)
}

func TestIncrementProviderUsageAccumulates(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)

	require.NoError(t, repo.IncrementProviderUsage(ctx, "demo", "2026-03", 1, t0))
	require.NoError(t, repo.IncrementProviderUsage(ctx, "demo", "2026-03", 2, t0.Add(time.Minute)))
	require.NoError(t, repo.IncrementProviderUsage(ctx, "demo", "2026-04", 1, t0))

	usage, err := repo.GetProviderUsage(ctx, "demo", "2026-03")
	require.NoError(t, err)
	require.NotNil(t, usage)
	assert.Equal(t, int64(3), usage.UsageCount)
	assert.True(t, usage.UpdatedAt.Equal(t0.Add(time.Minute)))

	missing, err := repo.GetProviderUsage(ctx, "other", "2026-03")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFeedbackAndRating(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateGeneration(ctx, &domain.Generation{
		ID: "g1", UserID: "anonymous", OutputImageURL: "https://x/y.png", CreatedAt: now,
	}))
	require.NoError(t, repo.CreateTrainingSample(ctx, &domain.TrainingSample{
		ID: "g1", OutputImageURL: "https://x/y.png", CreatedAt: now,
	}))

	require.NoError(t, repo.SetFeedback(ctx, "g1", domain.FeedbackLike, now))
	assert.ErrorIs(t, repo.SetFeedback(ctx, "missing", domain.FeedbackLike, now), domain.ErrGenerationNotFound)

	note := "great"
	gen, err := repo.SetRating(ctx, "g1", -1, &note, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, -1, gen.UserRating)
	require.NotNil(t, gen.UserFeedback)
	assert.Equal(t, "great", *gen.UserFeedback)
	require.NotNil(t, gen.Feedback)
	assert.Equal(t, domain.FeedbackLike, *gen.Feedback)
	require.NotNil(t, gen.RatedAt)

	_, err = repo.SetRating(ctx, "missing", 1, nil, now)
	assert.ErrorIs(t, err, domain.ErrGenerationNotFound)
}
