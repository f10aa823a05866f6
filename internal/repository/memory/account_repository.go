package memory

import (
	"context"
	"fmt"
	"sort"

	"login-service/internal/config"
	"login-service/internal/encryption"
	"login-service/internal/hashing"
	"login-service/internal/models"
	"login-service/internal/repository"
	"login-service/internal/totp"
	"login-service/internal/util"
)

// AccountRepository is the static, read-only account table. Credentials are hashed and
// TOTP secrets sealed once when the repository is built.
type AccountRepository struct {
	accounts map[string]*models.Account
	ids      []string
}

func NewAccountRepository(ctx context.Context, seeds []config.AccountSeed, hasher *hashing.Hasher, em *encryption.EncryptionManager) (*AccountRepository, error) {
	r := &AccountRepository{accounts: make(map[string]*models.Account, len(seeds))}

	for _, seed := range seeds {
		if _, dup := r.accounts[seed.ID]; dup {
			return nil, fmt.Errorf("duplicate account %q", seed.ID)
		}

		credential, err := hasher.HashCredential(seed.Credential)
		if err != nil {
			return nil, fmt.Errorf("failed to hash credential for %q: %w", seed.ID, err)
		}

		account := &models.Account{
			ID:          seed.ID,
			DisplayName: seed.DisplayName,
			Credential:  credential,
		}
		if seed.TOTPSecret != "" {
			if _, err := totp.DecodeSecret(seed.TOTPSecret); err != nil {
				return nil, fmt.Errorf("account %q: %w", seed.ID, err)
			}
			sealed, err := em.Seal(ctx, []byte(seed.TOTPSecret), models.TOTPSecretPurpose(seed.ID))
			if err != nil {
				return nil, fmt.Errorf("failed to seal TOTP secret for %q: %w", seed.ID, err)
			}
			account.TOTPSecret = sealed
		}

		r.accounts[seed.ID] = account
		r.ids = append(r.ids, seed.ID)
	}
	sort.Strings(r.ids)

	util.Info("Account repository loaded", util.Int("accounts", len(r.ids)))
	return r, nil
}

func (r *AccountRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return account, nil
}

// List returns every account ordered by ID.
func (r *AccountRepository) List(_ context.Context) ([]*models.Account, error) {
	out := make([]*models.Account, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.accounts[id])
	}
	return out, nil
}
