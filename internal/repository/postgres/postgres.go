package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/repository"
)

const uniqueViolation = "23505"

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgDatabase is satisfied by *pgxpool.Pool and by pgxmock pools.
type pgDatabase interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

func statementBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Store groups the PostgreSQL repositories and runs units of work against them.
type Store struct {
	db         pgDatabase
	logger     *zap.Logger
	Identities *IdentityRepository
	Tokens     *SingleUseTokenRepository
}

// NewStore wires all repositories backed by the provided database handle.
func NewStore(db pgDatabase, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:         db,
		logger:     logger,
		Identities: NewIdentityRepository(db),
		Tokens:     NewSingleUseTokenRepository(db),
	}
}

// RunInTx executes fn within a transaction, rolling back when fn returns an error.
func (s *Store) RunInTx(ctx context.Context, fn func(port.Stores) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	if err = fn(port.Stores{
		Identities: s.Identities.WithTx(tx),
		Tokens:     s.Tokens.WithTx(tx),
	}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// mapWriteError translates unique violations into repository.ErrConflict.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, repository.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ port.UnitOfWork = (*Store)(nil)
