package redis

import (
	"context"
	"testing"
	"time"

	"login-service/internal/client"
	"login-service/internal/config"
	"login-service/internal/hashing"
	"login-service/internal/models"
	"login-service/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := client.NewRedisClient(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return NewSessionCache(rc, "", time.Minute), mr
}

func TestSessionCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	s := models.NewSession("tok", time.Now().UTC())
	require.NoError(t, cache.Create(ctx, s))
	assert.True(t, mr.Exists("session_data:tok"))
	assert.ErrorIs(t, cache.Create(ctx, s), repository.ErrSessionExists)

	s.BeginChallenge("user1", &hashing.HashResult{Hash: "h", Salt: "s", PepperVersion: 1, Algorithm: "argon2id-v1"})
	require.NoError(t, cache.Save(ctx, s))

	got, err := cache.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingSecondFactor, got.State())
	assert.Equal(t, "user1", got.PendingAccountID)
	assert.Equal(t, *s.PendingCode, *got.PendingCode)
}

func TestSessionCacheIdleExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Create(ctx, models.NewSession("tok", time.Now())))

	mr.FastForward(50 * time.Second)
	_, err := cache.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL("session_data:tok"), "reads reset the idle timer")

	mr.FastForward(61 * time.Second)
	_, err = cache.Get(ctx, "tok")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSessionCacheSaveDoesNotResurrect(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	s := models.NewSession("tok", time.Now())
	require.NoError(t, cache.Create(ctx, s))
	require.NoError(t, cache.Delete(ctx, "tok"))

	s.Authenticate("user2", "User Two")
	assert.ErrorIs(t, cache.Save(ctx, s), repository.ErrSessionNotFound)
	_, err := cache.Get(ctx, "tok")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSessionCacheDropsCorruptRecords(t *testing.T) {
	cache, mr := newTestCache(t)
	require.NoError(t, mr.Set("session_data:bad", "{not json"))

	_, err := cache.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	assert.False(t, mr.Exists("session_data:bad"))
}

func TestSessionCacheBackendDown(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "tok")
	assert.ErrorIs(t, err, repository.ErrBackend)
}
