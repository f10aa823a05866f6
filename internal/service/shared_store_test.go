package service

import (
	"context"
	"testing"
	"time"

	"login-service/internal/audit"
	"login-service/internal/client"
	"login-service/internal/config"
	"login-service/internal/encryption"
	"login-service/internal/hashing"
	"login-service/internal/metrics"
	"login-service/internal/repository/memory"
	redisrepo "login-service/internal/repository/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSharedCache(t *testing.T) *redisrepo.SessionCache {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := client.NewRedisClient(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return redisrepo.NewSessionCache(rc, "session_data:", time.Minute)
}

// newInstance builds a service with its own hasher, key material and accounts over store,
// the way a separate process sharing the session store would.
func newInstance(t *testing.T, store SessionStore, pepperVersion int, now time.Time) *LoginService {
	t.Helper()
	ctx := context.Background()

	hasher, err := hashing.NewHasher(config.HashingConfig{
		Argon2MemoryCost:  64,
		Argon2TimeCost:    1,
		Argon2Parallelism: 1,
		Pepper:            "test-pepper",
		PepperVersion:     pepperVersion,
	})
	require.NoError(t, err)
	em, err := encryption.NewEncryptionManager(config.KMSConfig{}, nil)
	require.NoError(t, err)
	accounts, err := memory.NewAccountRepository(ctx, demoAccounts, hasher, em)
	require.NoError(t, err)

	svc, err := NewLoginService(accounts, store, hasher, em, &audit.Recorder{}, metrics.New(),
		config.TOTPConfig{Period: 30, Digits: 6})
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	return svc
}

func TestSecondFactorCompletesOnAnotherInstance(t *testing.T) {
	ctx := context.Background()
	cache := newSharedCache(t)
	f := &fixture{now: time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC)}

	a := newInstance(t, cache, 1, f.now)
	b := newInstance(t, cache, 1, f.now)

	token, err := a.CreateSession(ctx)
	require.NoError(t, err)
	redirect, err := a.SubmitCredentials(ctx, token, "user1", "password1")
	require.NoError(t, err)
	require.Equal(t, RedirectSecondFactor, redirect)

	redirect, err = b.SubmitSecondFactor(ctx, token, f.codeAt(t, f.now))
	require.NoError(t, err)
	assert.Equal(t, RedirectHome, redirect)

	id, err := b.CurrentIdentity(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, Identity{Authenticated: true, AccountID: "user1", DisplayName: "User One"}, id)

	id, err = a.CurrentIdentity(ctx, token)
	require.NoError(t, err)
	assert.True(t, id.Authenticated)
}

func TestLoginAfterPepperVersionBumps(t *testing.T) {
	ctx := context.Background()
	cache := newSharedCache(t)
	f := &fixture{now: time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC)}

	// three bumps past the first version
	svc := newInstance(t, cache, 4, f.now)

	token, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	redirect, err := svc.SubmitCredentials(ctx, token, "user1", "password1")
	require.NoError(t, err)
	require.Equal(t, RedirectSecondFactor, redirect)

	redirect, err = svc.SubmitSecondFactor(ctx, token, f.codeAt(t, f.now))
	require.NoError(t, err)
	assert.Equal(t, RedirectHome, redirect)

	token, err = svc.CreateSession(ctx)
	require.NoError(t, err)
	redirect, err = svc.SubmitCredentials(ctx, token, "user2", "password2")
	require.NoError(t, err)
	assert.Equal(t, RedirectHome, redirect)
}

func TestChallengeSurvivesRollingPepperBump(t *testing.T) {
	ctx := context.Background()
	cache := newSharedCache(t)
	f := &fixture{now: time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC)}

	previous := newInstance(t, cache, 3, f.now)
	upgraded := newInstance(t, cache, 4, f.now)

	token, err := previous.CreateSession(ctx)
	require.NoError(t, err)
	redirect, err := previous.SubmitCredentials(ctx, token, "user1", "password1")
	require.NoError(t, err)
	require.Equal(t, RedirectSecondFactor, redirect)

	redirect, err = upgraded.SubmitSecondFactor(ctx, token, f.codeAt(t, f.now))
	require.NoError(t, err)
	assert.Equal(t, RedirectHome, redirect)
}
