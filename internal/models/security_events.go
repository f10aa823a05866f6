package models

import "time"

type EventType string

const (
	EventSessionCreated      EventType = "session_created"
	EventCredentialsAccepted EventType = "credentials_accepted"
	EventCredentialsRejected EventType = "credentials_rejected"
	EventChallengeIssued     EventType = "second_factor_challenge_issued"
	EventSecondFactorSuccess EventType = "second_factor_success"
	EventSecondFactorFailure EventType = "second_factor_failure"
	EventNoPendingChallenge  EventType = "second_factor_without_challenge"
	EventLogout              EventType = "logout"
)

// SecurityEvent is one audited step of the login flow as written to every audit sink.
type SecurityEvent struct {
	EventID     string    `json:"event_id" db:"event_id"`
	EventBucket int       `json:"event_bucket" db:"event_bucket"`
	EventDate   string    `json:"event_date" db:"event_date"`
	EventTime   time.Time `json:"event_time" db:"event_time"`
	EventType   EventType `json:"event_type" db:"event_type"`
	AccountID   string    `json:"account_id,omitempty" db:"account_id"`
	SessionRef  string    `json:"session_ref,omitempty" db:"session_ref"`
	Success     bool      `json:"success" db:"success"`
	Reason      string    `json:"reason,omitempty" db:"reason"`
	IPAddress   string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent   string    `json:"user_agent,omitempty" db:"user_agent"`
	RequestID   string    `json:"request_id,omitempty" db:"request_id"`
}
