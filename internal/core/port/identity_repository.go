package port

import (
	"context"
	"time"

	"github.com/fares7elsadek/Readly/internal/core/domain"
)

// IdentityRepository exposes persistence behavior for identities.
// Email arguments are expected to be normalized by the caller.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateFlags(ctx context.Context, id string, enabled, locked bool, at time.Time) error
}
