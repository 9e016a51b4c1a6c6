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

const identitiesTable = "readly.identities"

var identityColumns = []string{
	"id",
	"email",
	"password_hash",
	"enabled",
	"locked",
	"roles",
	"created_at",
	"updated_at",
}

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository wires a PostgreSQL-backed identity repository.
func NewIdentityRepository(exec pgExecutor) *IdentityRepository {
	return &IdentityRepository{
		exec:    exec,
		builder: statementBuilder(),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *IdentityRepository) WithTx(tx pgx.Tx) *IdentityRepository {
	if tx == nil {
		return r
	}
	return &IdentityRepository{
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new identity row. A taken email surfaces as repository.ErrConflict.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.Identity) error {
	roles := identity.Roles
	if roles == nil {
		roles = []string{}
	}

	sql, args, err := r.builder.Insert(identitiesTable).
		Columns(identityColumns...).
		Values(
			identity.ID,
			identity.Email,
			identity.PasswordHash,
			identity.Enabled,
			identity.Locked,
			roles,
			identity.CreatedAt,
			identity.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return mapWriteError("insert identity", err)
	}
	return nil
}

// GetByID retrieves an identity by identifier.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves an identity by its normalized email.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

func (r *IdentityRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.Identity, error) {
	stmt, args, err := r.builder.
		Select(identityColumns...).
		From(identitiesTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	var identity domain.Identity
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.Enabled,
		&identity.Locked,
		&identity.Roles,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	return &identity, nil
}

// ExistsByEmail reports whether an identity already owns the normalized email.
func (r *IdentityRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From(identitiesTable).
		Where(squirrel.Eq{"email": email}).
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists identity sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check identity email: %w", err)
	}
	return exists, nil
}

// UpdateFlags sets the enabled and locked flags of an identity.
func (r *IdentityRepository) UpdateFlags(ctx context.Context, id string, enabled, locked bool, at time.Time) error {
	sql, args, err := r.builder.Update(identitiesTable).
		Set("enabled", enabled).
		Set("locked", locked).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update identity flags sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update identity flags: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
