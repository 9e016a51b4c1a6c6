package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/repository"
)

const dummyPassword = "readly-timing-equalizer"

// CredentialVerifier checks an email and password pair against the stored hash.
type CredentialVerifier struct {
	identities port.IdentityRepository
	hasher     port.PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialVerifier constructs a verifier over the identity store.
func NewCredentialVerifier(identities port.IdentityRepository, hasher port.PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{identities: identities, hasher: hasher}
}

// Authenticate resolves the identity owning email and proves knowledge of its password.
// Unknown emails and wrong passwords both fail with domain.ErrBadCredentials. A disabled
// identity is only reported after the password matched.
func (v *CredentialVerifier) Authenticate(ctx context.Context, email, password string) (*domain.Identity, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" || password == "" {
		v.equalizeTiming(password)
		return nil, domain.ErrBadCredentials
	}

	identity, err := v.identities.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			v.equalizeTiming(password)
			return nil, domain.ErrBadCredentials
		}
		return nil, domain.Infrastructure("lookup identity", err)
	}

	ok, err := v.hasher.Verify(password, identity.PasswordHash)
	if err != nil {
		return nil, domain.Infrastructure("verify password", err)
	}
	if !ok {
		return nil, domain.ErrBadCredentials
	}
	if !identity.Enabled {
		return nil, domain.ErrAccountDisabled
	}

	return identity, nil
}

// equalizeTiming spends one hash comparison so unknown emails cost as much as known ones.
func (v *CredentialVerifier) equalizeTiming(password string) {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = v.hasher.Hash(dummyPassword)
	})
	if v.dummyHash != "" {
		_, _ = v.hasher.Verify(password, v.dummyHash)
	}
}
