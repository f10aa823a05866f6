package hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"login-service/internal/config"
	"login-service/internal/util"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	algorithm = "argon2id-v1"

	purposeCredential = "credential"
	purposeCode       = "otp"

	// hashes made under a pepper this many versions behind the current one still verify
	keptPeppers = 2
)

var (
	ErrInvalidHash    = errors.New("invalid hash format")
	ErrPepperNotFound = errors.New("pepper version not found")
	ErrMissingPepper  = errors.New("pepper secret not configured")
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// HashResult is a self-describing argon2id hash. It is stored inside session records.
type HashResult struct {
	Hash          string `json:"hash"`
	Salt          string `json:"salt"`
	PepperVersion int    `json:"pepper_version"`
	Algorithm     string `json:"algorithm"`
}

// Hasher peppers every hash with a key derived from configured secret material, so all
// processes sharing the secret verify each other's hashes. Rotation is a bump of the
// configured version; the previous keptPeppers versions and the next one stay verifiable.
type Hasher struct {
	params  Argon2Params
	version int
	peppers map[int][]byte
}

func NewHasher(cfg config.HashingConfig) (*Hasher, error) {
	h := &Hasher{
		params: Argon2Params{
			Memory:      uint32(cfg.Argon2MemoryCost),
			Iterations:  uint32(cfg.Argon2TimeCost),
			Parallelism: uint8(cfg.Argon2Parallelism),
			SaltLength:  16,
			KeyLength:   32,
		},
		version: cfg.PepperVersion,
		peppers: make(map[int][]byte, keptPeppers+2),
	}
	if h.params.Memory == 0 || h.params.Iterations == 0 || h.params.Parallelism == 0 {
		return nil, fmt.Errorf("invalid argon2 parameters: %+v", h.params)
	}
	if cfg.Pepper == "" {
		return nil, ErrMissingPepper
	}
	if h.version <= 0 {
		h.version = 1
	}

	for v := max(1, h.version-keptPeppers); v <= h.version+1; v++ {
		p, err := derivePepper(cfg.Pepper, v)
		if err != nil {
			return nil, err
		}
		h.peppers[v] = p
	}

	util.Debug("Hasher initialized", util.Int("pepper_version", h.version))
	return h, nil
}

func derivePepper(secret string, version int) ([]byte, error) {
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(fmt.Sprintf("login-service/pepper/v%d", version)))
	p := make([]byte, 32)
	if _, err := io.ReadFull(kdf, p); err != nil {
		return nil, fmt.Errorf("failed to derive pepper v%d: %w", version, err)
	}
	return p, nil
}

// PepperVersion is the version new hashes are made under.
func (h *Hasher) PepperVersion() int {
	return h.version
}

func (h *Hasher) HashCredential(credential string) (*HashResult, error) {
	return h.hash(credential, purposeCredential)
}

func (h *Hasher) VerifyCredential(credential string, stored *HashResult) (bool, error) {
	return h.verify(credential, stored, purposeCredential)
}

func (h *Hasher) HashCode(code string) (*HashResult, error) {
	return h.hash(code, purposeCode)
}

func (h *Hasher) VerifyCode(code string, stored *HashResult) (bool, error) {
	return h.verify(code, stored, purposeCode)
}

func (h *Hasher) hash(data, purpose string) (*HashResult, error) {
	pepperValue := h.peppers[h.version]

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	sum := argon2.IDKey(h.input(data, pepperValue, purpose), salt,
		h.params.Iterations, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	return &HashResult{
		Hash:          base64.RawURLEncoding.EncodeToString(sum),
		Salt:          base64.RawURLEncoding.EncodeToString(salt),
		PepperVersion: h.version,
		Algorithm:     algorithm,
	}, nil
}

func (h *Hasher) verify(data string, stored *HashResult, purpose string) (bool, error) {
	if stored == nil || stored.Algorithm != algorithm {
		return false, ErrInvalidHash
	}
	pepperValue, err := h.pepper(stored.PepperVersion)
	if err != nil {
		return false, err
	}
	salt, err := base64.RawURLEncoding.DecodeString(stored.Salt)
	if err != nil {
		return false, ErrInvalidHash
	}
	expected, err := base64.RawURLEncoding.DecodeString(stored.Hash)
	if err != nil || len(expected) == 0 {
		return false, ErrInvalidHash
	}

	computed := argon2.IDKey(h.input(data, pepperValue, purpose), salt,
		h.params.Iterations, h.params.Memory, h.params.Parallelism, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// input binds the purpose so a code hash can never verify as a credential.
func (h *Hasher) input(data string, pepperValue []byte, purpose string) []byte {
	buf := make([]byte, 0, len(data)+len(pepperValue)+len(purpose)+2)
	buf = append(buf, purpose...)
	buf = append(buf, 0)
	buf = append(buf, data...)
	buf = append(buf, 0)
	buf = append(buf, pepperValue...)
	return buf
}

func (h *Hasher) pepper(version int) ([]byte, error) {
	p, ok := h.peppers[version]
	if !ok {
		return nil, ErrPepperNotFound
	}
	return p, nil
}
