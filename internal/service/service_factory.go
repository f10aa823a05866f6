package service

import (
	"sync"

	"login-service/internal/config"
	"login-service/internal/encryption"
	"login-service/internal/hashing"
	"login-service/internal/metrics"
)

// ServiceFactory builds services lazily from shared infrastructure.
type ServiceFactory struct {
	accounts      AccountRepository
	sessions      SessionStore
	hasher        *hashing.Hasher
	encryptionMgr *encryption.EncryptionManager
	auditor       Auditor
	metrics       *metrics.Metrics
	totpCfg       config.TOTPConfig

	once         sync.Once
	loginService *LoginService
	loginErr     error
}

func NewServiceFactory(
	accounts AccountRepository,
	sessions SessionStore,
	hasher *hashing.Hasher,
	encryptionMgr *encryption.EncryptionManager,
	auditor Auditor,
	m *metrics.Metrics,
	totpCfg config.TOTPConfig,
) *ServiceFactory {
	return &ServiceFactory{
		accounts:      accounts,
		sessions:      sessions,
		hasher:        hasher,
		encryptionMgr: encryptionMgr,
		auditor:       auditor,
		metrics:       m,
		totpCfg:       totpCfg,
	}
}

// LoginService returns the login service instance (singleton)
func (f *ServiceFactory) LoginService() (*LoginService, error) {
	f.once.Do(func() {
		f.loginService, f.loginErr = NewLoginService(
			f.accounts,
			f.sessions,
			f.hasher,
			f.encryptionMgr,
			f.auditor,
			f.metrics,
			f.totpCfg,
		)
	})
	return f.loginService, f.loginErr
}
