package postgres

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsIndexEmailForEqualityLookups(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil || len(names) == 0 {
		t.Fatalf("no embedded migrations: %v", err)
	}

	var schema strings.Builder
	for _, name := range names {
		raw, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		up, _, _ := strings.Cut(string(raw), "-- +goose Down")
		schema.WriteString(up)
	}
	applied := schema.String()

	// GetByEmail and ExistsByEmail filter on "email = $1".
	if !regexp.MustCompile(`identities_email_key UNIQUE \(email\)`).MatchString(applied) {
		t.Fatalf("expected a plain unique constraint on identities.email")
	}
	if !strings.Contains(applied, "DROP INDEX IF EXISTS readly.identities_email_key") {
		t.Fatalf("expression index on lower(email) must be replaced")
	}
}
