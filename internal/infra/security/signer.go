package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fares7elsadek/Readly/internal/core/domain"
)

const (
	// DefaultIssuer is stamped into the iss claim of every session token.
	DefaultIssuer = "Readly"

	minSecretBytes = 32
)

var (
	// ErrInvalidSigningKey is returned when the configured secret cannot be used for HS256.
	ErrInvalidSigningKey = errors.New("security: invalid signing key")

	errEmptyToken = errors.New("token is empty")
)

// sessionClaims is the JWT payload. Claim names match the tokens issued by earlier Readly releases.
type sessionClaims struct {
	Kind        string   `json:"type"`
	IdentityID  string   `json:"userId,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
	jwt.RegisteredClaims
}

// HMACSigner mints and verifies HS256 session tokens with a secret derived once at startup.
type HMACSigner struct {
	key    []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// SignerOption customises an HMACSigner.
type SignerOption func(*HMACSigner)

// WithSignerClock overrides the clock used for iat/exp and validation (primarily for tests).
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *HMACSigner) {
		if now != nil {
			s.now = now
		}
	}
}

// NewHMACSigner decodes the base64 secret and prepares the signer.
func NewHMACSigner(secretBase64, issuer string, opts ...SignerOption) (*HMACSigner, error) {
	secret := strings.TrimSpace(secretBase64)
	if secret == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrInvalidSigningKey)
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidSigningKey, err)
	}
	if len(key) < minSecretBytes {
		return nil, fmt.Errorf("%w: secret must decode to at least %d bytes, got %d", ErrInvalidSigningKey, minSecretBytes, len(key))
	}

	if issuer = strings.TrimSpace(issuer); issuer == "" {
		issuer = DefaultIssuer
	}

	s := &HMACSigner{
		key:    key,
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)

	return s, nil
}

// Issue signs a token for subject that expires after ttl.
func (s *HMACSigner) Issue(subject string, claims domain.TokenClaims, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("security: subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("security: ttl must be positive")
	}

	now := s.now().UTC()
	tokenID := claims.TokenID
	if tokenID == "" {
		tokenID = uuid.NewString()
	}

	payload := sessionClaims{
		Kind:        string(claims.Kind),
		IdentityID:  claims.IdentityID,
		Authorities: claims.Authorities,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry, and returns the embedded claims.
func (s *HMACSigner) Verify(raw string) (*domain.TokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.InvalidToken(domain.TokenMalformed, errEmptyToken)
	}

	var claims sessionClaims
	if _, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}); err != nil {
		return nil, classifyJWTError(err)
	}

	if claims.Subject == "" {
		return nil, domain.InvalidToken(domain.TokenMalformed, errors.New("subject claim missing"))
	}

	out := &domain.TokenClaims{
		Subject:     claims.Subject,
		Kind:        domain.SessionKind(claims.Kind),
		IdentityID:  claims.IdentityID,
		Authorities: claims.Authorities,
		TokenID:     claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// classifyJWTError maps jwt parser failures onto token rejection reasons.
func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.InvalidToken(domain.TokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return domain.InvalidToken(domain.TokenBadSignature, err)
	default:
		return domain.InvalidToken(domain.TokenMalformed, err)
	}
}
