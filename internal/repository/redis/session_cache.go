package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"login-service/internal/client"
	"login-service/internal/models"
	"login-service/internal/repository"
	"login-service/internal/util"
)

const defaultKeyPrefix = "session_data:"

// SessionCache keeps session records as JSON strings whose TTL is the idle timeout.
// Every read resets the TTL, so a session lives as long as it keeps being used.
type SessionCache struct {
	client *client.RedisClient
	prefix string
	ttl    time.Duration
}

func NewSessionCache(c *client.RedisClient, prefix string, idleTimeout time.Duration) *SessionCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &SessionCache{client: c, prefix: prefix, ttl: idleTimeout}
}

func (c *SessionCache) key(token string) string {
	return c.prefix + token
}

func (c *SessionCache) Create(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := c.client.SetNX(ctx, c.key(session.Token), data, c.ttl)
	if err != nil {
		util.Error("Failed to create session", util.SessionField(session.Token), util.ErrorField(err))
		return fmt.Errorf("%w: %v", repository.ErrBackend, err)
	}
	if !ok {
		return repository.ErrSessionExists
	}

	util.Debug("Session created", util.SessionField(session.Token), util.Duration("ttl", c.ttl))
	return nil
}

func (c *SessionCache) Get(ctx context.Context, token string) (*models.Session, error) {
	raw, err := c.client.GetEx(ctx, c.key(token), c.ttl)
	if err != nil {
		if errors.Is(err, client.ErrKeyNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		util.Error("Failed to get session", util.SessionField(token), util.ErrorField(err))
		return nil, fmt.Errorf("%w: %v", repository.ErrBackend, err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		util.Warn("Discarding unreadable session record", util.SessionField(token), util.ErrorField(err))
		_ = c.client.Del(ctx, c.key(token))
		return nil, repository.ErrSessionNotFound
	}
	return &session, nil
}

// Save overwrites an existing record. A session that expired or was deleted in the
// meantime is not resurrected.
func (c *SessionCache) Save(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := c.client.SetXX(ctx, c.key(session.Token), data, c.ttl)
	if err != nil {
		util.Error("Failed to save session", util.SessionField(session.Token), util.ErrorField(err))
		return fmt.Errorf("%w: %v", repository.ErrBackend, err)
	}
	if !ok {
		return repository.ErrSessionNotFound
	}
	return nil
}

func (c *SessionCache) Delete(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, c.key(token)); err != nil {
		util.Error("Failed to delete session", util.SessionField(token), util.ErrorField(err))
		return fmt.Errorf("%w: %v", repository.ErrBackend, err)
	}
	util.Debug("Session deleted", util.SessionField(token))
	return nil
}

// Close is a no-op; the Redis client is owned by the factory.
func (c *SessionCache) Close() error {
	return nil
}
