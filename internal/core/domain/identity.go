package domain

import (
	"strings"
	"time"
)

// RoleUser is granted to every identity created through self-registration.
const RoleUser = "USER"

// Identity mirrors the persisted representation in the identities table.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	Enabled      bool
	Locked       bool
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail trims and case-folds an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authorities returns a copy of the identity's role names.
func (i Identity) Authorities() []string {
	if len(i.Roles) == 0 {
		return []string{}
	}
	out := make([]string, len(i.Roles))
	copy(out, i.Roles)
	return out
}

// MarkVerified enables and unlocks the identity after a successful email verification.
func (i *Identity) MarkVerified(at time.Time) {
	i.Enabled = true
	i.Locked = false
	i.UpdatedAt = at
}
