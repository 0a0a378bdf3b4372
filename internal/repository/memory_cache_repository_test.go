package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/finals-finder/internal/models"
	appErrors "github.com/noah-isme/finals-finder/pkg/errors"
)

func TestMemoryCacheRepositoryRoundTripAndExpiry(t *testing.T) {
	now := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	repo := NewMemoryCacheRepository()
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "finder:dates", models.DatesResponse{Data: []string{"2025-12-08"}}, time.Minute))

	var got models.DatesResponse
	require.NoError(t, repo.Get(ctx, "finder:dates", &got))
	assert.Equal(t, []string{"2025-12-08"}, got.Data)

	now = now.Add(time.Minute)
	err := repo.Get(ctx, "finder:dates", &got)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.Equal(t, 0, repo.Len())
}

func TestMemoryCacheRepositoryDeleteByPattern(t *testing.T) {
	repo := NewMemoryCacheRepository()
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "finder:exams:a:1", 1, 0))
	require.NoError(t, repo.Set(ctx, "finder:exams:b:1", 2, 0))
	require.NoError(t, repo.Set(ctx, "finder:dates", 3, 0))

	require.NoError(t, repo.DeleteByPattern(ctx, "finder:exams:*"))
	assert.Equal(t, 1, repo.Len())

	var v int
	require.NoError(t, repo.Get(ctx, "finder:dates", &v))
	assert.Equal(t, 3, v)
}

func TestMemoryCacheRepositorySweep(t *testing.T) {
	now := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	repo := NewMemoryCacheRepository()
	repo.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "short", 1, time.Second))
	require.NoError(t, repo.Set(ctx, "long", 1, time.Hour))

	now = now.Add(2 * time.Second)
	assert.Equal(t, 1, repo.Sweep())
	assert.Equal(t, 1, repo.Len())
}

func TestMemoryCacheRepositoryReportsCorruptPayload(t *testing.T) {
	repo := NewMemoryCacheRepository()
	require.NoError(t, repo.Set(context.Background(), "finder:filters:dates", "plain string", time.Minute))

	var dest struct{ Data []string }
	err := repo.Get(context.Background(), "finder:filters:dates", &dest)
	assert.True(t, errors.Is(err, appErrors.ErrCacheCorrupt))
	assert.False(t, errors.Is(err, appErrors.ErrCacheMiss))
}
