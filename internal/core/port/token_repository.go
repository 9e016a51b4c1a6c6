package port

import (
	"context"
	"time"

	"github.com/fares7elsadek/Readly/internal/core/domain"
)

// SingleUseTokenRepository persists single-use tokens by the hash of their raw value.
type SingleUseTokenRepository interface {
	Create(ctx context.Context, token domain.SingleUseToken) error
	GetByHash(ctx context.Context, hash string) (*domain.SingleUseToken, error)
	// MarkConsumed sets consumed_at only while it is still NULL.
	// It returns repository.ErrNotFound when no row was updated.
	MarkConsumed(ctx context.Context, id string, at time.Time) error
	ExpireOutstanding(ctx context.Context, identityID string, kind domain.TokenKind, at time.Time) (int64, error)
}

// Stores groups the repositories that take part in a unit of work.
type Stores struct {
	Identities IdentityRepository
	Tokens     SingleUseTokenRepository
}

// UnitOfWork runs fn against transaction-scoped repositories, committing when fn returns nil.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(Stores) error) error
}
