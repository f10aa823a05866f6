// Package totp implements RFC 6238 time-based one-time passwords (HMAC-SHA1).
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidSecret = errors.New("invalid totp secret")
	ErrEmptySecret   = errors.New("empty totp secret")
)

type Config struct {
	Period int
	Digits int
	Skew   int
}

type Generator struct {
	period int64
	digits int
	skew   int
}

func New(cfg Config) *Generator {
	if cfg.Period <= 0 {
		cfg.Period = 30
	}
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	if cfg.Skew < 0 {
		cfg.Skew = 0
	}
	return &Generator{period: int64(cfg.Period), digits: cfg.Digits, skew: cfg.Skew}
}

// DecodeSecret decodes a base32 shared secret. Case, spaces and '=' padding are ignored.
func DecodeSecret(secret string) ([]byte, error) {
	cleaned := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	cleaned = strings.TrimRight(cleaned, "=")
	if cleaned == "" {
		return nil, ErrEmptySecret
	}
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return raw, nil
}

func (g *Generator) Counter(t time.Time) int64 {
	return t.Unix() / g.period
}

// Code returns the code for the interval containing t.
func (g *Generator) Code(secret []byte, t time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	return hotp(secret, g.Counter(t), g.digits), nil
}

// Verify reports whether code matches the interval containing t or, when a skew is
// configured, one of the skew intervals on either side of it.
func (g *Generator) Verify(secret []byte, code string, t time.Time) bool {
	code = strings.TrimSpace(code)
	if len(secret) == 0 || len(code) != g.digits {
		return false
	}
	base := g.Counter(t)
	for step := -g.skew; step <= g.skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotp(secret, counter, g.digits)), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

func (g *Generator) Digits() int {
	return g.digits
}

func (g *Generator) Skew() int {
	return g.skew
}

func hotp(secret []byte, counter int64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod)
}
