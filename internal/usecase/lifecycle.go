package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/infra/security"
	"github.com/fares7elsadek/Readly/internal/repository"
)

// createAttempts bounds how often a colliding token value is regenerated.
const createAttempts = 3

// consumeCheck is one step of the ordered rejection sequence applied before consumption.
type consumeCheck struct {
	reason domain.TokenFailure
	fails  func(token *domain.SingleUseToken, expected domain.TokenKind, now time.Time) bool
}

// consumeChecks runs in order; the first failing check decides the rejection reason.
// Not-found is handled by the lookup itself and always wins.
var consumeChecks = []consumeCheck{
	{
		reason: domain.TokenWrongKind,
		fails: func(token *domain.SingleUseToken, expected domain.TokenKind, _ time.Time) bool {
			return token.Kind != expected
		},
	},
	{
		reason: domain.TokenAlreadyConsumed,
		fails: func(token *domain.SingleUseToken, _ domain.TokenKind, _ time.Time) bool {
			return token.IsConsumed()
		},
	},
	{
		reason: domain.TokenExpired,
		fails: func(token *domain.SingleUseToken, _ domain.TokenKind, now time.Time) bool {
			return token.IsExpired(now)
		},
	},
}

// TokenLifecycle creates and consumes persisted single-use tokens.
type TokenLifecycle struct {
	tokens    port.SingleUseTokenRepository
	generator port.RandomTokenGenerator
	now       func() time.Time
}

// NewTokenLifecycle wires the lifecycle over a token repository and value generator.
func NewTokenLifecycle(tokens port.SingleUseTokenRepository, generator port.RandomTokenGenerator) *TokenLifecycle {
	return &TokenLifecycle{
		tokens:    tokens,
		generator: generator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (l *TokenLifecycle) WithClock(now func() time.Time) *TokenLifecycle {
	if now == nil {
		return l
	}
	clone := *l
	clone.now = now
	return &clone
}

// WithRepository returns a lifecycle bound to repo, typically a transaction-scoped repository.
func (l *TokenLifecycle) WithRepository(repo port.SingleUseTokenRepository) *TokenLifecycle {
	if repo == nil {
		return l
	}
	clone := *l
	clone.tokens = repo
	return &clone
}

// CreateSingleUse stores a fresh token for identityID and returns it with its raw value.
// The raw value is never persisted and cannot be recovered later.
func (l *TokenLifecycle) CreateSingleUse(ctx context.Context, identityID string, kind domain.TokenKind, ttl time.Duration) (*domain.SingleUseToken, string, error) {
	if ttl <= 0 {
		return nil, "", domain.Infrastructure("create single-use token", fmt.Errorf("ttl must be positive, got %s", ttl))
	}

	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		raw, err := l.generator.NewToken()
		if err != nil {
			return nil, "", domain.Infrastructure("generate single-use token", err)
		}

		now := l.now()
		token := domain.SingleUseToken{
			ID:         uuid.NewString(),
			ValueHash:  security.HashToken(raw),
			IdentityID: identityID,
			Kind:       kind,
			CreatedAt:  now,
			ExpiresAt:  now.Add(ttl),
		}

		err = l.tokens.Create(ctx, token)
		if err == nil {
			return &token, raw, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, "", domain.Infrastructure("store single-use token", err)
		}
		lastErr = err
	}

	return nil, "", domain.Infrastructure("store single-use token",
		fmt.Errorf("value collided %d times: %w", createAttempts, lastErr))
}

// Consume exchanges raw for its token exactly once.
// Rejections are reported as *domain.InvalidTokenError in the order
// not found, wrong kind, already consumed, expired.
func (l *TokenLifecycle) Consume(ctx context.Context, raw string, expected domain.TokenKind) (*domain.SingleUseToken, error) {
	if raw == "" {
		return nil, domain.InvalidToken(domain.TokenNotFound, nil)
	}

	token, err := l.tokens.GetByHash(ctx, security.HashToken(raw))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.InvalidToken(domain.TokenNotFound, nil)
		}
		return nil, domain.Infrastructure("lookup single-use token", err)
	}

	now := l.now()
	if reason, rejected := firstFailedCheck(token, expected, now); rejected {
		return nil, domain.InvalidToken(reason, nil)
	}

	if err := l.tokens.MarkConsumed(ctx, token.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost the race against a concurrent consumer.
			return nil, domain.InvalidToken(domain.TokenAlreadyConsumed, nil)
		}
		return nil, domain.Infrastructure("consume single-use token", err)
	}

	token.MarkConsumed(now)
	return token, nil
}

// ExpireOutstanding ends the validity of every unconsumed token of kind owned by identityID.
func (l *TokenLifecycle) ExpireOutstanding(ctx context.Context, identityID string, kind domain.TokenKind) (int64, error) {
	count, err := l.tokens.ExpireOutstanding(ctx, identityID, kind, l.now())
	if err != nil {
		return 0, domain.Infrastructure("expire single-use tokens", err)
	}
	return count, nil
}

func firstFailedCheck(token *domain.SingleUseToken, expected domain.TokenKind, now time.Time) (domain.TokenFailure, bool) {
	for _, check := range consumeChecks {
		if check.fails(token, expected, now) {
			return check.reason, true
		}
	}
	return "", false
}
