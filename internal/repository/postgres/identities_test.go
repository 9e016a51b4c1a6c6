package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/repository"
)

func TestIdentityRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)
	now := time.Now().UTC()
	identity := domain.Identity{
		ID:           "11111111-1111-1111-1111-111111111111",
		Email:        "reader@example.com",
		PasswordHash: "hash",
		Locked:       true,
		Roles:        []string{domain.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO readly\.identities`).
		WithArgs(identity.ID, identity.Email, identity.PasswordHash, false, true, identity.Roles, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), identity); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepositoryCreateConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)
	mock.ExpectExec(`INSERT INTO readly\.identities`).
		WithArgs("id", "dup@example.com", pgxmock.AnyArg(), false, false, []string{}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "identities_email_key"})

	err = repo.Create(context.Background(), domain.Identity{ID: "id", Email: "dup@example.com"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepositoryGetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)
	now := time.Now().UTC()
	rows := mock.NewRows(identityColumns).
		AddRow("id-1", "reader@example.com", "hash", true, false, []string{"USER"}, now, now)

	mock.ExpectQuery(`SELECT .*FROM readly\.identities WHERE email = \$1`).
		WithArgs("reader@example.com").
		WillReturnRows(rows)

	identity, err := repo.GetByEmail(context.Background(), "reader@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if identity.ID != "id-1" || !identity.Enabled || identity.Locked {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if len(identity.Roles) != 1 || identity.Roles[0] != "USER" {
		t.Fatalf("unexpected roles: %v", identity.Roles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityRepositoryGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)
	mock.ExpectQuery(`SELECT .*FROM readly\.identities WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIdentityRepositoryExistsByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)
	mock.ExpectQuery(`SELECT EXISTS \( SELECT 1 FROM readly\.identities WHERE email = \$1 \)`).
		WithArgs("reader@example.com").
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "reader@example.com")
	if err != nil {
		t.Fatalf("ExistsByEmail: %v", err)
	}
	if !exists {
		t.Fatal("expected email to exist")
	}
}

func TestIdentityRepositoryUpdateFlags(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewIdentityRepository(mock)
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE readly\.identities SET enabled = \$1, locked = \$2, updated_at = \$3 WHERE id = \$4`).
		WithArgs(true, false, now, "id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE readly\.identities`).
		WithArgs(true, false, now, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdateFlags(context.Background(), "id-1", true, false, now); err != nil {
		t.Fatalf("UpdateFlags: %v", err)
	}
	if err := repo.UpdateFlags(context.Background(), "missing", true, false, now); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
