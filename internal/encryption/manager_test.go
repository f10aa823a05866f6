package encryption

import (
	"context"
	"errors"
	"testing"

	"login-service/internal/config"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKMS "wraps" data keys by reversing them, which is enough to exercise the envelope path.
type fakeKMS struct {
	generated int
	decrypted int
	failWith  error
}

func (f *fakeKMS) GenerateDataKey(_ context.Context, in *kms.GenerateDataKeyInput, _ ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.generated++
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + f.generated)
	}
	return &kms.GenerateDataKeyOutput{Plaintext: key, CiphertextBlob: reverse(key), KeyId: in.KeyId}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.decrypted++
	return &kms.DecryptOutput{Plaintext: reverse(in.CiphertextBlob)}, nil
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

func TestSealOpenLocal(t *testing.T) {
	em, err := NewEncryptionManager(config.KMSConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, em.UsesKMS())

	ctx := context.Background()
	sealed, err := em.Seal(ctx, []byte("JBSWY3DPEBLW64TMMQ"), "totp:user1")
	require.NoError(t, err)
	assert.Equal(t, localKeyID, sealed.KeyID)
	assert.NotContains(t, sealed.EncryptedValue, "JBSWY3DP")

	plain, err := em.Open(ctx, sealed, "totp:user1")
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEBLW64TMMQ", string(plain))

	em.ClearCache()
	assert.Zero(t, em.CacheSize())
	plain, err = em.Open(ctx, sealed, "totp:user1")
	require.NoError(t, err, "data key is unwrapped again with the local master key")
	assert.Equal(t, "JBSWY3DPEBLW64TMMQ", string(plain))
}

func TestOpenRejectsWrongPurpose(t *testing.T) {
	em, err := NewEncryptionManager(config.KMSConfig{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	sealed, err := em.Seal(ctx, []byte("secret"), "totp:user1")
	require.NoError(t, err)

	_, err = em.Open(ctx, sealed, "totp:user2")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSealOpenWithKMS(t *testing.T) {
	fake := &fakeKMS{}
	em, err := NewEncryptionManager(config.KMSConfig{Enabled: true, KeyID: "alias/login"}, fake)
	require.NoError(t, err)
	assert.True(t, em.UsesKMS())

	ctx := context.Background()
	sealed, err := em.Seal(ctx, []byte("secret"), "p")
	require.NoError(t, err)
	assert.Equal(t, "alias/login", sealed.KeyID)
	assert.Equal(t, 1, fake.generated)

	em.ClearCache()
	plain, err := em.Open(ctx, sealed, "p")
	require.NoError(t, err)
	assert.Equal(t, "secret", string(plain))
	assert.Equal(t, 1, fake.decrypted)

	_, err = em.Open(ctx, sealed, "p")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.decrypted, "second open hits the DEK cache")
}

func TestSealPropagatesKMSFailure(t *testing.T) {
	em, err := NewEncryptionManager(config.KMSConfig{Enabled: true, KeyID: "k"}, &fakeKMS{failWith: errors.New("throttled")})
	require.NoError(t, err)

	_, err = em.Seal(context.Background(), []byte("x"), "p")
	assert.ErrorContains(t, err, "throttled")
}

func TestOpenNilEnvelope(t *testing.T) {
	em, err := NewEncryptionManager(config.KMSConfig{}, nil)
	require.NoError(t, err)
	_, err = em.Open(context.Background(), nil, "p")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}
