package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"login-service/internal/config"
	"login-service/internal/encryption"
	"login-service/internal/hashing"
	"login-service/internal/metrics"
	"login-service/internal/models"
	"login-service/internal/repository"
	"login-service/internal/totp"
	"login-service/internal/util"
)

// SessionStore persists session records keyed by token. Get must refresh the idle expiry
// and report repository.ErrSessionNotFound for unknown or expired tokens.
type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, token string) error
}

type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// Auditor receives one event per step of the login flow. Emit must not block for long.
type Auditor interface {
	Emit(ctx context.Context, event models.SecurityEvent)
}

// Redirect names where the client goes after a successful step.
type Redirect string

const (
	RedirectHome         Redirect = "home"
	RedirectSecondFactor Redirect = "secondFactor"
)

func (r Redirect) Path() string {
	if r == RedirectSecondFactor {
		return "/2fa"
	}
	return "/"
}

// Identity is what the session currently proves about its holder.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	AccountID     string `json:"accountId,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
}

// RequestMeta is copied into audit events.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type requestMetaKey struct{}

func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

func requestMetaFrom(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// LoginService runs the two-step login state machine over a session store.
type LoginService struct {
	accounts AccountRepository
	sessions SessionStore
	hasher   *hashing.Hasher
	secrets  *encryption.EncryptionManager
	totp     *totp.Generator
	auditor  Auditor
	metrics  *metrics.Metrics
	logCodes bool

	// verified against when the account is unknown, so both rejections cost the same
	decoy *hashing.HashResult
	now   func() time.Time
}

func NewLoginService(
	accounts AccountRepository,
	sessions SessionStore,
	hasher *hashing.Hasher,
	secrets *encryption.EncryptionManager,
	auditor Auditor,
	m *metrics.Metrics,
	cfg config.TOTPConfig,
) (*LoginService, error) {
	decoy, err := hasher.HashCredential(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare decoy hash: %w", err)
	}

	return &LoginService{
		accounts: accounts,
		sessions: sessions,
		hasher:   hasher,
		secrets:  secrets,
		totp:     totp.New(totp.Config{Period: cfg.Period, Digits: cfg.Digits, Skew: cfg.Skew}),
		auditor:  auditor,
		metrics:  m,
		logCodes: cfg.LogCodes,
		decoy:    decoy,
		now:      time.Now,
	}, nil
}

// CreateSession stores a fresh anonymous session and returns its token.
func (s *LoginService) CreateSession(ctx context.Context) (string, error) {
	now := s.now()
	for attempt := 0; attempt < 3; attempt++ {
		token := uuid.NewString()
		err := s.sessions.Create(ctx, models.NewSession(token, now))
		if errors.Is(err, repository.ErrSessionExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		s.metrics.SessionCreated()
		s.emit(ctx, models.SecurityEvent{EventType: models.EventSessionCreated, SessionRef: token, Success: true})
		return token, nil
	}
	return "", fmt.Errorf("%w: token collision", ErrStoreUnavailable)
}

// ResumeSession returns token when it names a live session, refreshing its idle timer.
// Otherwise it creates a new session and reports created.
func (s *LoginService) ResumeSession(ctx context.Context, token string) (string, bool, error) {
	if token != "" {
		_, err := s.load(ctx, token)
		if err == nil {
			return token, false, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return "", false, err
		}
	}
	created, err := s.CreateSession(ctx)
	if err != nil {
		return "", false, err
	}
	return created, true, nil
}

// SubmitCredentials checks accountID and credential. Any earlier state of the session is
// discarded first, so a failed attempt leaves the session anonymous.
func (s *LoginService) SubmitCredentials(ctx context.Context, token, accountID, credential string) (Redirect, error) {
	session, err := s.load(ctx, token)
	if err != nil {
		return "", err
	}
	wasActive := session.State() != models.StateAnonymous
	session.Reset()

	account, err := s.verifyCredentials(ctx, accountID, credential)
	if err != nil {
		if wasActive {
			if err := s.save(ctx, session); err != nil {
				return "", err
			}
		}
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.CredentialAttempt(metrics.OutcomeRejected)
			s.emit(ctx, models.SecurityEvent{
				EventType:  models.EventCredentialsRejected,
				AccountID:  accountID,
				SessionRef: token,
				Reason:     "invalid credentials",
			})
		}
		return "", err
	}

	if !account.RequiresSecondFactor() {
		session.Authenticate(account.ID, account.DisplayName)
		if err := s.save(ctx, session); err != nil {
			return "", err
		}
		s.metrics.CredentialAttempt(metrics.OutcomeAccepted)
		s.emit(ctx, models.SecurityEvent{
			EventType:  models.EventCredentialsAccepted,
			AccountID:  account.ID,
			SessionRef: token,
			Success:    true,
		})
		util.Info("Login succeeded", util.AccountField(account.ID), util.SessionField(token))
		return RedirectHome, nil
	}

	code, err := s.currentCode(ctx, account)
	if err != nil {
		return "", err
	}
	hashed, err := s.hasher.HashCode(code)
	if err != nil {
		return "", fmt.Errorf("failed to hash second-factor code: %w", err)
	}

	session.BeginChallenge(account.ID, hashed)
	if err := s.save(ctx, session); err != nil {
		return "", err
	}

	if s.logCodes {
		util.Info("Second-factor code issued", util.AccountField(account.ID), util.String("code", code))
	}
	s.metrics.CredentialAttempt(metrics.OutcomeChallenged)
	s.emit(ctx, models.SecurityEvent{
		EventType:  models.EventChallengeIssued,
		AccountID:  account.ID,
		SessionRef: token,
		Success:    true,
	})
	return RedirectSecondFactor, nil
}

// SubmitSecondFactor completes a pending challenge. A wrong code leaves the challenge in
// place so the holder may try again; a correct one consumes it.
func (s *LoginService) SubmitSecondFactor(ctx context.Context, token, code string) (Redirect, error) {
	session, err := s.load(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return "", s.noPendingChallenge(ctx, token)
	}
	if err != nil {
		return "", err
	}
	if session.State() != models.StatePendingSecondFactor {
		return "", s.noPendingChallenge(ctx, token)
	}

	accountID := session.PendingAccountID
	ok, err := s.verifyCode(ctx, session, code)
	if err != nil {
		util.Warn("Pending challenge unusable, clearing it",
			util.AccountField(accountID), util.SessionField(token), util.ErrorField(err))
		session.Reset()
		if err := s.save(ctx, session); err != nil {
			return "", err
		}
		return "", s.noPendingChallenge(ctx, token)
	}

	if !ok {
		s.metrics.SecondFactorAttempt(metrics.OutcomeFailure)
		s.emit(ctx, models.SecurityEvent{
			EventType:  models.EventSecondFactorFailure,
			AccountID:  accountID,
			SessionRef: token,
			Reason:     "code mismatch",
		})
		return "", ErrInvalidSecondFactor
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to load account %q: %w", accountID, err)
	}

	session.Authenticate(account.ID, account.DisplayName)
	if err := s.save(ctx, session); err != nil {
		return "", err
	}

	s.metrics.SecondFactorAttempt(metrics.OutcomeSuccess)
	s.emit(ctx, models.SecurityEvent{
		EventType:  models.EventSecondFactorSuccess,
		AccountID:  account.ID,
		SessionRef: token,
		Success:    true,
	})
	util.Info("Login succeeded", util.AccountField(account.ID), util.SessionField(token), util.Bool("second_factor", true))
	return RedirectHome, nil
}

// CurrentIdentity reports the authenticated account, or an anonymous identity for unknown,
// expired, anonymous and pending sessions.
func (s *LoginService) CurrentIdentity(ctx context.Context, token string) (Identity, error) {
	session, err := s.load(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return Identity{}, nil
	}
	if err != nil {
		return Identity{}, err
	}
	if session.State() != models.StateAuthenticated {
		return Identity{}, nil
	}
	return Identity{Authenticated: true, AccountID: session.AccountID, DisplayName: session.DisplayName}, nil
}

func (s *LoginService) HasPendingChallenge(ctx context.Context, token string) (bool, error) {
	session, err := s.load(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return session.State() == models.StatePendingSecondFactor, nil
}

// Logout deletes the session record whatever its state. Unknown tokens are not an error.
func (s *LoginService) Logout(ctx context.Context, token string) error {
	var accountID string
	if session, err := s.load(ctx, token); err == nil {
		accountID = session.AccountID
		if accountID == "" {
			accountID = session.PendingAccountID
		}
	}

	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.metrics.Logout()
	s.emit(ctx, models.SecurityEvent{
		EventType:  models.EventLogout,
		AccountID:  accountID,
		SessionRef: token,
		Success:    true,
	})
	return nil
}

func (s *LoginService) verifyCredentials(ctx context.Context, accountID, credential string) (*models.Account, error) {
	if accountID == "" || credential == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		_, _ = s.hasher.VerifyCredential(credential, s.decoy)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	ok, err := s.hasher.VerifyCredential(credential, account.Credential)
	if err != nil {
		util.Error("Stored credential cannot be verified", util.AccountField(accountID), util.ErrorField(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}

// verifyCode checks code against the hash issued with the challenge and, when a skew
// window is configured, against the codes of the adjacent intervals.
func (s *LoginService) verifyCode(ctx context.Context, session *models.Session, code string) (bool, error) {
	if len(code) != s.totp.Digits() || !util.IsDigits(code) {
		return false, nil
	}

	ok, err := s.hasher.VerifyCode(code, session.PendingCode)
	if err != nil || ok || s.totp.Skew() == 0 {
		return ok, err
	}

	account, err := s.accounts.GetByID(ctx, session.PendingAccountID)
	if err != nil {
		return false, err
	}
	secret, err := s.openSecret(ctx, account)
	if err != nil {
		return false, err
	}
	return s.totp.Verify(secret, code, s.now()), nil
}

func (s *LoginService) currentCode(ctx context.Context, account *models.Account) (string, error) {
	secret, err := s.openSecret(ctx, account)
	if err != nil {
		return "", err
	}
	return s.totp.Code(secret, s.now())
}

func (s *LoginService) openSecret(ctx context.Context, account *models.Account) ([]byte, error) {
	sealed, err := s.secrets.Open(ctx, account.TOTPSecret, models.TOTPSecretPurpose(account.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to open TOTP secret for %q: %w", account.ID, err)
	}
	secret, err := totp.DecodeSecret(string(sealed))
	if err != nil {
		return nil, fmt.Errorf("invalid TOTP secret for %q: %w", account.ID, err)
	}
	return secret, nil
}

func (s *LoginService) noPendingChallenge(ctx context.Context, token string) error {
	s.metrics.SecondFactorAttempt(metrics.OutcomeNoChallenge)
	s.emit(ctx, models.SecurityEvent{
		EventType:  models.EventNoPendingChallenge,
		SessionRef: token,
		Reason:     "no pending challenge",
	})
	return ErrNoPendingChallenge
}

func (s *LoginService) load(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	session.LastSeenAt = s.now()
	return session, nil
}

func (s *LoginService) save(ctx context.Context, session *models.Session) error {
	err := s.sessions.Save(ctx, session)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *LoginService) emit(ctx context.Context, event models.SecurityEvent) {
	if s.auditor == nil {
		return
	}
	meta := requestMetaFrom(ctx)
	if event.SessionRef != "" {
		event.SessionRef = SessionRef(event.SessionRef)
	}
	event.EventTime = s.now().UTC()
	event.IPAddress = meta.IPAddress
	event.UserAgent = meta.UserAgent
	event.RequestID = meta.RequestID
	s.auditor.Emit(ctx, event)
}

// SessionRef is a stable, non-reversible handle for a session token, safe to store in
// audit backends.
func SessionRef(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
