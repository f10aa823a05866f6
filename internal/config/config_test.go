package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")

	cfg := LoadConfig()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, ":8888", cfg.GetServerAddress())
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 30, cfg.TOTP.Period)
	assert.Equal(t, 6, cfg.TOTP.Digits)
	assert.Equal(t, 0, cfg.TOTP.Skew)
	assert.True(t, cfg.TOTP.LogCodes)
	assert.Equal(t, cfg.Session.Secret, cfg.Hashing.Pepper, "pepper falls back to the session secret")
	assert.Equal(t, 1, cfg.Hashing.PepperVersion)
	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, AccountSeed{ID: "user1", Credential: "password1", DisplayName: "User One", TOTPSecret: "JBSWY3DPEBLW64TMMQ======"}, cfg.Accounts[0])
	assert.Equal(t, AccountSeed{ID: "user2", Credential: "password2", DisplayName: "User Two"}, cfg.Accounts[1])
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ENV_FILE", "does-not-exist.env")
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_STORE", "REDIS")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")
	t.Setenv("TOTP_SKEW", "1")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("ACCOUNTS", "alice:s3cret:Alice A.:")
	t.Setenv("HASH_PEPPER", "shared-pepper")
	t.Setenv("HASH_PEPPER_VERSION", "3")

	cfg := LoadConfig()

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, SessionStoreRedis, cfg.Session.Store)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 1, cfg.TOTP.Skew)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, "Alice A.", cfg.Accounts[0].DisplayName)
	assert.Empty(t, cfg.Accounts[0].TOTPSecret)
	assert.Equal(t, "shared-pepper", cfg.Hashing.Pepper)
	assert.Equal(t, 3, cfg.Hashing.PepperVersion)
	assert.NoError(t, cfg.Validate())
}

func TestParseAccountsRejectsShortEntries(t *testing.T) {
	_, err := ParseAccounts("user1:password1")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Setenv("ENV_FILE", "does-not-exist.env")
		return LoadConfig()
	}

	t.Run("duplicate accounts", func(t *testing.T) {
		cfg := base(t)
		cfg.Accounts = append(cfg.Accounts, cfg.Accounts[0])
		assert.ErrorContains(t, cfg.Validate(), "duplicate account")
	})

	t.Run("unknown store", func(t *testing.T) {
		cfg := base(t)
		cfg.Session.Store = "etcd"
		assert.ErrorContains(t, cfg.Validate(), "unknown session store")
	})

	t.Run("default secret in production", func(t *testing.T) {
		cfg := base(t)
		cfg.Environment = "production"
		assert.ErrorContains(t, cfg.Validate(), "SESSION_SECRET")
	})

	t.Run("bad totp digits", func(t *testing.T) {
		cfg := base(t)
		cfg.TOTP.Digits = 4
		assert.ErrorContains(t, cfg.Validate(), "totp digits")
	})

	t.Run("kms without key", func(t *testing.T) {
		cfg := base(t)
		cfg.KMS.Enabled = true
		assert.ErrorContains(t, cfg.Validate(), "KMS_KEY_ID")
	})

	t.Run("totp secret not base32", func(t *testing.T) {
		t.Setenv("ACCOUNTS", "user1:password1:User One:not-base32!")
		cfg := base(t)
		assert.ErrorContains(t, cfg.Validate(), `account "user1": invalid totp secret`)
	})

	t.Run("pepper version", func(t *testing.T) {
		cfg := base(t)
		cfg.Hashing.PepperVersion = 0
		assert.ErrorContains(t, cfg.Validate(), "pepper version")
	})

	t.Run("malformed accounts", func(t *testing.T) {
		t.Setenv("ACCOUNTS", "broken")
		cfg := base(t)
		assert.ErrorContains(t, cfg.Validate(), "expected id:credential:name")
	})
}
