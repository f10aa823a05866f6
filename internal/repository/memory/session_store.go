// Package memory holds the in-process storage backends used by default and in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"login-service/internal/models"
	"login-service/internal/repository"
	"login-service/internal/util"
)

type sessionEntry struct {
	session   models.Session
	expiresAt time.Time
}

// SessionStore is a mutex-guarded map of session records with idle expiry. Expired
// entries are dropped on access and by a background sweeper.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	now      func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewSessionStore starts a sweeper every sweepInterval; a non-positive interval disables it.
func NewSessionStore(idleTimeout, sweepInterval time.Duration) *SessionStore {
	return newSessionStore(idleTimeout, sweepInterval, time.Now)
}

func newSessionStore(idleTimeout, sweepInterval time.Duration, now func() time.Time) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      idleTimeout,
		now:      now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	} else {
		close(s.done)
	}
	return s
}

func (s *SessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.sessions[session.Token]; ok && now.Before(e.expiresAt) {
		return repository.ErrSessionExists
	}
	s.sessions[session.Token] = &sessionEntry{session: clone(session), expiresAt: now.Add(s.ttl)}
	return nil
}

// Get returns a copy of the record and pushes its expiry out by the idle timeout.
func (s *SessionStore) Get(_ context.Context, token string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[token]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	now := s.now()
	if !now.Before(e.expiresAt) {
		delete(s.sessions, token)
		return nil, repository.ErrSessionNotFound
	}
	e.expiresAt = now.Add(s.ttl)
	out := clone(&e.session)
	return &out, nil
}

func (s *SessionStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[session.Token]
	now := s.now()
	if !ok || !now.Before(e.expiresAt) {
		delete(s.sessions, session.Token)
		return repository.ErrSessionNotFound
	}
	e.session = clone(session)
	e.expiresAt = now.Add(s.ttl)
	return nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

// Len reports the number of records held, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes every expired record and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, e := range s.sessions {
		if !now.Before(e.expiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

func (s *SessionStore) sweepLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				util.Debug("Expired sessions swept", util.Int("count", n))
			}
		case <-s.stop:
			return
		}
	}
}

// Close stops the sweeper and waits for it to exit.
func (s *SessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func clone(src *models.Session) models.Session {
	out := *src
	if src.PendingCode != nil {
		code := *src.PendingCode
		out.PendingCode = &code
	}
	return out
}
