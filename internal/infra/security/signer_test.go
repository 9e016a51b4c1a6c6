package security

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fares7elsadek/Readly/internal/core/domain"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestSigner(t *testing.T, clock *fakeClock) *HMACSigner {
	t.Helper()
	signer, err := NewHMACSigner(testSecret, DefaultIssuer, WithSignerClock(clock.Now))
	require.NoError(t, err)
	return signer
}

func TestHMACSignerRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	signer := newTestSigner(t, clock)

	issued := domain.TokenClaims{
		Kind:        domain.SessionKindAccess,
		IdentityID:  "identity-1",
		Authorities: []string{"USER", "LIBRARIAN"},
	}
	token, err := signer.Issue("identity-1", issued, 15*time.Minute)
	require.NoError(t, err)

	clock.now = clock.now.Add(14 * time.Minute)
	claims, err := signer.Verify(token)
	require.NoError(t, err)

	assert.Equal(t, "identity-1", claims.Subject)
	assert.Equal(t, domain.SessionKindAccess, claims.Kind)
	assert.Equal(t, "identity-1", claims.IdentityID)
	assert.Equal(t, []string{"USER", "LIBRARIAN"}, claims.Authorities)
	assert.NotEmpty(t, claims.TokenID)
	assert.Equal(t, time.Date(2025, 5, 1, 9, 15, 0, 0, time.UTC), claims.ExpiresAt.UTC())
}

func TestHMACSignerIssuesDistinctTokens(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	signer := newTestSigner(t, clock)

	first, err := signer.Issue("identity-1", domain.TokenClaims{Kind: domain.SessionKindRefresh}, time.Hour)
	require.NoError(t, err)
	second, err := signer.Issue("identity-1", domain.TokenClaims{Kind: domain.SessionKindRefresh}, time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHMACSignerRejectsExpiredTokens(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	signer := newTestSigner(t, clock)

	token, err := signer.Issue("identity-1", domain.TokenClaims{Kind: domain.SessionKindAccess}, time.Minute)
	require.NoError(t, err)

	for _, after := range []time.Duration{time.Minute, time.Hour, 30 * 24 * time.Hour} {
		clock.now = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC).Add(after)
		_, err = signer.Verify(token)
		reason, ok := domain.TokenFailureOf(err)
		require.True(t, ok, "expected InvalidTokenError, got %v", err)
		assert.Equal(t, domain.TokenExpired, reason)
	}
}

func TestHMACSignerRejectsTamperedAndForeignTokens(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	signer := newTestSigner(t, clock)

	token, err := signer.Issue("identity-1", domain.TokenClaims{Kind: domain.SessionKindAccess}, time.Hour)
	require.NoError(t, err)

	otherSecret := base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210"))
	other, err := NewHMACSigner(otherSecret, DefaultIssuer, WithSignerClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.Issue("identity-1", domain.TokenClaims{Kind: domain.SessionKindAccess}, time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tamperedSig := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "identity-1",
		Issuer:    DefaultIssuer,
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		token  string
		reason domain.TokenFailure
	}{
		"empty":          {token: "  ", reason: domain.TokenMalformed},
		"garbage":        {token: "not-a-jwt", reason: domain.TokenMalformed},
		"foreign secret": {token: foreign, reason: domain.TokenBadSignature},
		"tampered sig":   {token: tamperedSig, reason: domain.TokenBadSignature},
		"alg none":       {token: unsigned, reason: domain.TokenBadSignature},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := signer.Verify(tc.token)
			require.ErrorIs(t, err, domain.ErrInvalidToken)
			reason, _ := domain.TokenFailureOf(err)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestNewHMACSignerValidatesSecret(t *testing.T) {
	_, err := NewHMACSigner("", DefaultIssuer)
	require.ErrorIs(t, err, ErrInvalidSigningKey)

	_, err = NewHMACSigner("%%%not-base64%%%", DefaultIssuer)
	require.ErrorIs(t, err, ErrInvalidSigningKey)

	_, err = NewHMACSigner(base64.StdEncoding.EncodeToString([]byte("short")), DefaultIssuer)
	require.ErrorIs(t, err, ErrInvalidSigningKey)
}

func TestHMACSignerIssueRequiresSubjectAndTTL(t *testing.T) {
	signer := newTestSigner(t, &fakeClock{now: time.Now()})

	_, err := signer.Issue("", domain.TokenClaims{Kind: domain.SessionKindAccess}, time.Minute)
	assert.Error(t, err)

	_, err = signer.Issue("identity-1", domain.TokenClaims{Kind: domain.SessionKindAccess}, 0)
	assert.Error(t, err)
}
