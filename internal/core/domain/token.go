package domain

import "time"

// TokenKind classifies persisted single-use tokens.
type TokenKind string

const (
	TokenKindEmailVerification TokenKind = "EMAIL_VERIFICATION"
)

// SessionKind is the value of the "type" claim carried by signed session tokens.
type SessionKind string

const (
	SessionKindAccess  SessionKind = "access"
	SessionKindRefresh SessionKind = "refresh"
)

// SingleUseToken is a persisted opaque token that can be consumed exactly once.
// Only the SHA-256 hash of the raw value is stored.
type SingleUseToken struct {
	ID         string
	ValueHash  string
	IdentityID string
	Kind       TokenKind
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// IsExpired reports whether the token has elapsed its validity window.
func (t SingleUseToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsConsumed reports whether the token was already exchanged.
func (t SingleUseToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}

// MarkConsumed records the consumption time.
// Returns false when the token had already been consumed.
func (t *SingleUseToken) MarkConsumed(at time.Time) bool {
	if t.ConsumedAt != nil {
		return false
	}
	timeCopy := at
	t.ConsumedAt = &timeCopy
	return true
}

// TokenClaims is the transport-neutral view of a signed session token.
type TokenClaims struct {
	Subject     string
	Kind        SessionKind
	IdentityID  string
	Authorities []string
	TokenID     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}
