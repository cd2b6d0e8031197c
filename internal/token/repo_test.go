package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/clock"
	"qrattend/internal/store/storetest"
)

func newToken(value string, created time.Time, ttl time.Duration) Token {
	return Token{Value: value, CreatedAt: created, ExpiresAt: created.Add(ttl)}
}

func TestRepositoryCreateAndFetch(t *testing.T) {
	repo := NewRepository(storetest.Open(t))
	ctx := context.Background()
	created := time.Date(2024, 3, 11, 8, 0, 0, 0, clock.Civil)

	saved, err := repo.Create(ctx, newToken("tok-1", created, 5*time.Minute))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, StatusActive, saved.Status)

	got, err := repo.FetchActive(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, saved.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.ExpiresAt.Equal(created.Add(5*time.Minute)))

	missing, err := repo.FetchActive(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryCreateDuplicateValue(t *testing.T) {
	repo := NewRepository(storetest.Open(t))
	ctx := context.Background()
	created := time.Date(2024, 3, 11, 8, 0, 0, 0, clock.Civil)

	_, err := repo.Create(ctx, newToken("dup", created, time.Minute))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newToken("dup", created, time.Minute))
	assert.ErrorIs(t, err, ErrDuplicateToken)
}

func TestRepositoryExpireIsIdempotent(t *testing.T) {
	repo := NewRepository(storetest.Open(t))
	ctx := context.Background()
	created := time.Date(2024, 3, 11, 8, 0, 0, 0, clock.Civil)

	_, err := repo.Create(ctx, newToken("tok-x", created, time.Minute))
	require.NoError(t, err)

	flipped, err := repo.Expire(ctx, "tok-x")
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = repo.Expire(ctx, "tok-x")
	require.NoError(t, err)
	assert.False(t, flipped)

	flipped, err = repo.Expire(ctx, "never-issued")
	require.NoError(t, err)
	assert.False(t, flipped)

	got, err := repo.FetchActive(ctx, "tok-x")
	require.NoError(t, err)
	assert.Nil(t, got, "expired-by-status token must look unknown")
}

func TestRepositoryExpireStale(t *testing.T) {
	repo := NewRepository(storetest.Open(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 11, 8, 0, 0, 0, clock.Civil)

	_, err := repo.Create(ctx, newToken("old", base, time.Minute))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newToken("fresh", base.Add(10*time.Minute), 5*time.Minute))
	require.NoError(t, err)

	n, err := repo.ExpireStale(ctx, base.Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	old, err := repo.FetchActive(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, old)

	fresh, err := repo.FetchActive(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}
