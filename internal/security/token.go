package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// NewVerificationToken returns an opaque single-use token (256 bits, base64url).
func NewVerificationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is what gets stored: sha256(token), base64url.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
