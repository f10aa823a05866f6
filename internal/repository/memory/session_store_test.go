package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"login-service/internal/hashing"
	"login-service/internal/models"
	"login-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*SessionStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newSessionStore(time.Minute, 0, clock.Now)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestSessionStoreCreateGet(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, models.NewSession("tok", clock.Now())))
	assert.ErrorIs(t, store.Create(ctx, models.NewSession("tok", clock.Now())), repository.ErrSessionExists)

	got, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, models.StateAnonymous, got.State())

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	s := models.NewSession("tok", clock.Now())
	s.BeginChallenge("user1", &hashing.HashResult{Hash: "h"})
	require.NoError(t, store.Create(ctx, s))

	got, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	got.PendingCode.Hash = "tampered"
	got.Reset()

	again, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "user1", again.PendingAccountID)
	assert.Equal(t, "h", again.PendingCode.Hash)
}

func TestSessionStoreIdleExpiry(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, models.NewSession("tok", clock.Now())))

	clock.Advance(50 * time.Second)
	_, err := store.Get(ctx, "tok")
	require.NoError(t, err, "access within the idle timeout")

	clock.Advance(50 * time.Second)
	_, err = store.Get(ctx, "tok")
	require.NoError(t, err, "previous access refreshed the expiry")

	clock.Advance(time.Minute)
	_, err = store.Get(ctx, "tok")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	assert.Zero(t, store.Len())
}

func TestSessionStoreSave(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	s := models.NewSession("tok", clock.Now())
	assert.ErrorIs(t, store.Save(ctx, s), repository.ErrSessionNotFound)

	require.NoError(t, store.Create(ctx, s))
	s.Authenticate("user2", "User Two")
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.StateAuthenticated, got.State())

	require.NoError(t, store.Delete(ctx, "tok"))
	assert.ErrorIs(t, store.Save(ctx, s), repository.ErrSessionNotFound, "deleted sessions are not resurrected")
	require.NoError(t, store.Delete(ctx, "tok"), "delete is idempotent")
}

func TestSessionStoreSweep(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, models.NewSession("old", clock.Now())))
	clock.Advance(40 * time.Second)
	require.NoError(t, store.Create(ctx, models.NewSession("new", clock.Now())))
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
	_, err := store.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestSessionStoreBackgroundSweeper(t *testing.T) {
	store := NewSessionStore(10*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, store.Create(context.Background(), models.NewSession("tok", time.Now())))

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
