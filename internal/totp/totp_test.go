package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeRFC6238VectorsSHA1(t *testing.T) {
	g := New(Config{Period: 30, Digits: 8})
	secret := []byte("12345678901234567890")

	cases := []struct {
		ts   int64
		code string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}

	for _, tc := range cases {
		code, err := g.Code(secret, time.Unix(tc.ts, 0))
		require.NoError(t, err)
		assert.Equal(t, tc.code, code, "t=%d", tc.ts)
		assert.True(t, g.Verify(secret, tc.code, time.Unix(tc.ts, 0)))
	}
}

func TestSixDigitCodeIsTruncatedVector(t *testing.T) {
	g := New(Config{})
	code, err := g.Code([]byte("12345678901234567890"), time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, "287082", code)
}

func TestVerifyExactIntervalByDefault(t *testing.T) {
	g := New(Config{Period: 30, Digits: 6})
	secret := []byte("12345678901234567890")
	now := time.Unix(1111111111, 0)

	prev, err := g.Code(secret, now.Add(-30*time.Second))
	require.NoError(t, err)
	cur, err := g.Code(secret, now)
	require.NoError(t, err)

	assert.True(t, g.Verify(secret, cur, now))
	assert.False(t, g.Verify(secret, prev, now))
}

func TestVerifyWithSkewAcceptsAdjacentIntervals(t *testing.T) {
	g := New(Config{Period: 30, Digits: 6, Skew: 1})
	secret := []byte("12345678901234567890")
	now := time.Unix(1111111111, 0)

	prev, _ := g.Code(secret, now.Add(-30*time.Second))
	next, _ := g.Code(secret, now.Add(30*time.Second))
	far, _ := g.Code(secret, now.Add(90*time.Second))

	assert.True(t, g.Verify(secret, prev, now))
	assert.True(t, g.Verify(secret, next, now))
	assert.False(t, g.Verify(secret, far, now))
}

func TestVerifyRejectsMalformedCodes(t *testing.T) {
	g := New(Config{})
	secret := []byte("12345678901234567890")
	now := time.Unix(59, 0)

	assert.False(t, g.Verify(secret, "", now))
	assert.False(t, g.Verify(secret, "28708", now))
	assert.False(t, g.Verify(nil, "287082", now))
	assert.True(t, g.Verify(secret, " 287082 ", now))
}

func TestDecodeSecret(t *testing.T) {
	padded, err := DecodeSecret("JBSWY3DPEBLW64TMMQ======")
	require.NoError(t, err)

	unpadded, err := DecodeSecret("jbsw y3dp eblw 64tm mq")
	require.NoError(t, err)
	assert.Equal(t, padded, unpadded)
	assert.Equal(t, "Hello!", string(padded[:6]))

	_, err = DecodeSecret("")
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = DecodeSecret("not base32 !")
	assert.ErrorIs(t, err, ErrInvalidSecret)
}
