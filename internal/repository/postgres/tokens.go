package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/repository"
)

const tokensTable = "readly.single_use_tokens"

// SingleUseTokenRepository implements port.SingleUseTokenRepository using PostgreSQL.
type SingleUseTokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSingleUseTokenRepository constructs a new token repository.
func NewSingleUseTokenRepository(exec pgExecutor) *SingleUseTokenRepository {
	return &SingleUseTokenRepository{
		exec:    exec,
		builder: statementBuilder(),
	}
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *SingleUseTokenRepository) WithTx(tx pgx.Tx) *SingleUseTokenRepository {
	if tx == nil {
		return r
	}
	return &SingleUseTokenRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a token record. A duplicate value hash surfaces as repository.ErrConflict
// without aborting the surrounding transaction.
func (r *SingleUseTokenRepository) Create(ctx context.Context, token domain.SingleUseToken) error {
	sql, args, err := r.builder.Insert(tokensTable).
		Columns(
			"id",
			"value_hash",
			"identity_id",
			"kind",
			"created_at",
			"expires_at",
			"consumed_at",
		).
		Values(
			token.ID,
			token.ValueHash,
			token.IdentityID,
			string(token.Kind),
			token.CreatedAt,
			token.ExpiresAt,
			token.ConsumedAt,
		).
		Suffix("ON CONFLICT (value_hash) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return mapWriteError("insert token", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("insert token: %w", repository.ErrConflict)
	}
	return nil
}

// GetByHash retrieves a token by the hash of its raw value.
func (r *SingleUseTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.SingleUseToken, error) {
	stmt, args, err := r.builder.Select(
		"id",
		"value_hash",
		"identity_id",
		"kind",
		"created_at",
		"expires_at",
		"consumed_at",
	).
		From(tokensTable).
		Where(squirrel.Eq{"value_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select token sql: %w", err)
	}

	var (
		token      domain.SingleUseToken
		kind       string
		consumedAt *time.Time
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.ValueHash,
		&token.IdentityID,
		&kind,
		&token.CreatedAt,
		&token.ExpiresAt,
		&consumedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}

	token.Kind = domain.TokenKind(kind)
	token.ConsumedAt = consumedAt
	return &token, nil
}

// MarkConsumed stamps consumed_at only while it is still NULL, so exactly one caller wins.
func (r *SingleUseTokenRepository) MarkConsumed(ctx context.Context, id string, at time.Time) error {
	sql, args, err := r.builder.Update(tokensTable).
		Set("consumed_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"consumed_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ExpireOutstanding pulls the expiry of every unconsumed, still valid token of the given kind to at.
func (r *SingleUseTokenRepository) ExpireOutstanding(ctx context.Context, identityID string, kind domain.TokenKind, at time.Time) (int64, error) {
	sql, args, err := r.builder.Update(tokensTable).
		Set("expires_at", at).
		Where(squirrel.Eq{"identity_id": identityID, "kind": string(kind), "consumed_at": nil}).
		Where(squirrel.Gt{"expires_at": at}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build expire tokens sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("expire tokens: %w", err)
	}
	return ct.RowsAffected(), nil
}

var _ port.SingleUseTokenRepository = (*SingleUseTokenRepository)(nil)
