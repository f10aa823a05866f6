package models

import (
	"login-service/internal/encryption"
	"login-service/internal/hashing"
)

// Account is a static login identity. Accounts are built once at startup.
type Account struct {
	ID          string
	DisplayName string
	Credential  *hashing.HashResult
	// TOTPSecret is the sealed base32 shared secret; nil disables the second factor.
	TOTPSecret *encryption.EncryptedData
}

func (a *Account) RequiresSecondFactor() bool {
	return a.TOTPSecret != nil
}

// TOTPSecretPurpose is the associated data an account's TOTP secret is sealed under.
func TOTPSecretPurpose(accountID string) string {
	return "totp:" + accountID
}
