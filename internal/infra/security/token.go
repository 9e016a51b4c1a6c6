package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// DefaultTokenBytes yields 256 bits of entropy per single-use token.
const DefaultTokenBytes = 32

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// SecureTokenGenerator produces opaque single-use token values.
type SecureTokenGenerator struct {
	byteLength int
}

// NewSecureTokenGenerator builds a generator; lengths below DefaultTokenBytes are raised to it.
func NewSecureTokenGenerator(byteLength int) *SecureTokenGenerator {
	if byteLength < DefaultTokenBytes {
		byteLength = DefaultTokenBytes
	}
	return &SecureTokenGenerator{byteLength: byteLength}
}

// NewToken returns a fresh URL-safe, unpadded random value.
func (g *SecureTokenGenerator) NewToken() (string, error) {
	return GenerateSecureToken(g.byteLength)
}
