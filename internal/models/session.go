package models

import (
	"time"

	"login-service/internal/hashing"
)

type SessionState int

const (
	StateAnonymous SessionState = iota
	StatePendingSecondFactor
	StateAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case StatePendingSecondFactor:
		return "pending_second_factor"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session is the server-held state behind a session cookie. At most one of AccountID and
// PendingAccountID is set; PendingCode is only set together with PendingAccountID.
type Session struct {
	Token            string              `json:"token"`
	AccountID        string              `json:"account_id,omitempty"`
	DisplayName      string              `json:"display_name,omitempty"`
	PendingAccountID string              `json:"pending_account_id,omitempty"`
	PendingCode      *hashing.HashResult `json:"pending_code,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	LastSeenAt       time.Time           `json:"last_seen_at"`
}

func NewSession(token string, now time.Time) *Session {
	return &Session{Token: token, CreatedAt: now, LastSeenAt: now}
}

func (s *Session) State() SessionState {
	switch {
	case s.AccountID != "":
		return StateAuthenticated
	case s.PendingAccountID != "":
		return StatePendingSecondFactor
	default:
		return StateAnonymous
	}
}

func (s *Session) Authenticate(accountID, displayName string) {
	s.AccountID = accountID
	s.DisplayName = displayName
	s.PendingAccountID = ""
	s.PendingCode = nil
}

func (s *Session) BeginChallenge(accountID string, code *hashing.HashResult) {
	s.AccountID = ""
	s.DisplayName = ""
	s.PendingAccountID = accountID
	s.PendingCode = code
}

// Reset returns the session to the anonymous state, keeping its token and timestamps.
func (s *Session) Reset() {
	s.AccountID = ""
	s.DisplayName = ""
	s.PendingAccountID = ""
	s.PendingCode = nil
}
