package hashing

import (
	"testing"

	"login-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVersionedHasher(t *testing.T, pepper string, version int) *Hasher {
	t.Helper()
	h, err := NewHasher(config.HashingConfig{
		Argon2MemoryCost:  64,
		Argon2TimeCost:    1,
		Argon2Parallelism: 1,
		Pepper:            pepper,
		PepperVersion:     version,
	})
	require.NoError(t, err)
	return h
}

func newTestHasher(t *testing.T) *Hasher {
	t.Helper()
	return newVersionedHasher(t, "test-pepper", 1)
}

func TestHashAndVerifyCode(t *testing.T) {
	h := newTestHasher(t)

	stored, err := h.HashCode("123456")
	require.NoError(t, err)
	assert.Equal(t, algorithm, stored.Algorithm)
	assert.Equal(t, 1, stored.PepperVersion)

	ok, err := h.VerifyCode("123456", stored)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.VerifyCode("654321", stored)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashesAreSalted(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.HashCredential("password1")
	require.NoError(t, err)
	b, err := h.HashCredential("password1")
	require.NoError(t, err)

	assert.NotEqual(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Salt, b.Salt)
}

func TestPurposeSeparation(t *testing.T) {
	h := newTestHasher(t)

	stored, err := h.HashCredential("123456")
	require.NoError(t, err)

	ok, err := h.VerifyCode("123456", stored)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashesVerifyAcrossHashers(t *testing.T) {
	a := newTestHasher(t)
	b := newTestHasher(t)

	stored, err := a.HashCode("123456")
	require.NoError(t, err)

	ok, err := b.VerifyCode("123456", stored)
	require.NoError(t, err)
	assert.True(t, ok, "same pepper secret verifies in another process")

	other := newVersionedHasher(t, "other-pepper", 1)
	ok, err = other.VerifyCode("123456", stored)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyAcrossPepperVersions(t *testing.T) {
	v1 := newVersionedHasher(t, "test-pepper", 1)
	stored, err := v1.HashCredential("password1")
	require.NoError(t, err)

	for _, version := range []int{2, 3} {
		ok, err := newVersionedHasher(t, "test-pepper", version).VerifyCredential("password1", stored)
		require.NoError(t, err)
		assert.True(t, ok, "version %d still verifies a v1 hash", version)
	}

	_, err = newVersionedHasher(t, "test-pepper", 4).VerifyCredential("password1", stored)
	assert.ErrorIs(t, err, ErrPepperNotFound)

	// a process one version behind verifies hashes from an upgraded one
	v2 := newVersionedHasher(t, "test-pepper", 2)
	newer, err := v2.HashCode("654321")
	require.NoError(t, err)
	assert.Equal(t, 2, newer.PepperVersion)
	ok, err := v1.VerifyCode("654321", newer)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	h := newTestHasher(t)

	_, err := h.VerifyCode("1", nil)
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = h.VerifyCode("1", &HashResult{Algorithm: "md5"})
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = h.VerifyCode("1", &HashResult{Algorithm: algorithm, PepperVersion: 1, Salt: "!!", Hash: "AA"})
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestNewHasherRejectsZeroParams(t *testing.T) {
	_, err := NewHasher(config.HashingConfig{Pepper: "p"})
	assert.Error(t, err)
}

func TestNewHasherRequiresPepper(t *testing.T) {
	_, err := NewHasher(config.HashingConfig{Argon2MemoryCost: 64, Argon2TimeCost: 1, Argon2Parallelism: 1})
	assert.ErrorIs(t, err, ErrMissingPepper)
}
