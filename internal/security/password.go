package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(pw, encoded string) bool
}

// Argon2Params are the cost parameters for new hashes. Stored hashes carry
// their own parameters, so changing these never invalidates existing records.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follow the OWASP argon2id baseline.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   19 * 1024,
		Iterations:  2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Upper bounds keep a corrupt stored record from demanding unbounded memory or CPU.
const (
	maxMemoryKiB  = 4 * 1024 * 1024 // 4 GiB
	maxIterations = 64
	maxKeyLength  = 1024
)

func (p Argon2Params) Validate() error {
	switch {
	case p.MemoryKiB > maxMemoryKiB:
		return fmt.Errorf("argon2: memory must be at most %d KiB", maxMemoryKiB)
	case p.Iterations > maxIterations:
		return fmt.Errorf("argon2: iterations must be at most %d", maxIterations)
	case p.KeyLength > maxKeyLength:
		return fmt.Errorf("argon2: key length must be at most %d bytes", maxKeyLength)
	case p.Parallelism < 1:
		return errors.New("argon2: parallelism must be at least 1")
	case p.Iterations < 1:
		return errors.New("argon2: iterations must be at least 1")
	case p.MemoryKiB < 8*uint32(p.Parallelism):
		return fmt.Errorf("argon2: memory must be at least %d KiB for parallelism %d", 8*uint32(p.Parallelism), p.Parallelism)
	case p.SaltLength < 8:
		return errors.New("argon2: salt length must be at least 8 bytes")
	case p.KeyLength < 16:
		return errors.New("argon2: key length must be at least 16 bytes")
	}
	return nil
}

type Argon2Hasher struct {
	params Argon2Params
}

// NewArgon2Hasher validates params and runs a self-check hash so a broken
// configuration fails at startup rather than on the first registration.
func NewArgon2Hasher(p Argon2Params) (*Argon2Hasher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	h := &Argon2Hasher{params: p}
	enc, err := h.Hash("self-check")
	if err != nil {
		return nil, fmt.Errorf("argon2 self-check: %w", err)
	}
	if !h.Verify("self-check", enc) {
		return nil, errors.New("argon2 self-check: verification failed")
	}
	return h, nil
}

func (h *Argon2Hasher) Hash(pw string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(pw), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)
	return encodePHC(h.params, salt, key), nil
}

// Verify recomputes the key with the parameters embedded in encoded.
// Malformed records never match.
func (h *Argon2Hasher) Verify(pw, encoded string) bool {
	p, salt, key, err := decodePHC(encoded)
	if err != nil {
		return false
	}
	other := argon2.IDKey([]byte(pw), salt, p.Iterations, p.MemoryKiB, p.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1
}

func encodePHC(p Argon2Params, salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

var errBadHash = errors.New("malformed argon2id hash")

// $argon2id$v=19$m=19456,t=2,p=2$<salt>$<key>
func decodePHC(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, errBadHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, errBadHash
	}
	var par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &par); err != nil {
		return p, nil, nil, errBadHash
	}
	if par < 1 || par > 255 {
		return p, nil, nil, errBadHash
	}
	p.Parallelism = uint8(par)
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errBadHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errBadHash
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	if p.Validate() != nil {
		return p, nil, nil, errBadHash
	}
	return p, salt, key, nil
}
