package port

import (
	"time"

	"github.com/fares7elsadek/Readly/internal/core/domain"
)

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// PasswordPolicyValidator enforces password strength requirements.
type PasswordPolicyValidator interface {
	Validate(password string) error
}

// TokenSigner mints signed session tokens.
type TokenSigner interface {
	Issue(subject string, claims domain.TokenClaims, ttl time.Duration) (string, error)
}

// TokenVerifier validates signed session tokens and returns their claims.
// Failures are reported as *domain.InvalidTokenError.
type TokenVerifier interface {
	Verify(token string) (*domain.TokenClaims, error)
}

// RandomTokenGenerator produces unguessable opaque token values.
type RandomTokenGenerator interface {
	NewToken() (string, error)
}
