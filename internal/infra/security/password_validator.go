package security

import (
	"fmt"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	DefaultMinPasswordLength = 8
	// DefaultMaxPasswordLength keeps hashing cost bounded for hostile inputs.
	DefaultMaxPasswordLength = 72
	maxStrengthScore         = 4
)

// Violation codes reported by PasswordPolicy.
const (
	ViolationTooShort = "min_length"
	ViolationTooLong  = "max_length"
	ViolationWeak     = "weak_password"
)

// PolicyViolation names the first password rule a candidate failed.
type PolicyViolation struct {
	Code    string
	Message string
}

func (v *PolicyViolation) Error() string { return v.Message }

// PasswordPolicyConfig captures the configurable password policy.
type PasswordPolicyConfig struct {
	MinLength int
	MaxLength int
	// MinScore is the minimum zxcvbn score (0-4). Zero disables the strength check.
	MinScore int
}

// PasswordPolicy checks registration passwords for length and zxcvbn strength.
type PasswordPolicy struct {
	minLength int
	maxLength int
	minScore  int
}

// NewPasswordPolicy fills unset bounds with the defaults.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	p := &PasswordPolicy{
		minLength: cfg.MinLength,
		maxLength: cfg.MaxLength,
		minScore:  min(max(cfg.MinScore, 0), maxStrengthScore),
	}
	if p.minLength <= 0 {
		p.minLength = DefaultMinPasswordLength
	}
	if p.maxLength <= 0 {
		p.maxLength = DefaultMaxPasswordLength
	}
	return p
}

// Validate returns a *PolicyViolation for the first failed rule.
func (p *PasswordPolicy) Validate(password string) error {
	switch n := utf8.RuneCountInString(password); {
	case n < p.minLength:
		return &PolicyViolation{
			Code:    ViolationTooShort,
			Message: fmt.Sprintf("password must be at least %d characters long", p.minLength),
		}
	case n > p.maxLength:
		return &PolicyViolation{
			Code:    ViolationTooLong,
			Message: fmt.Sprintf("password must be at most %d characters long", p.maxLength),
		}
	}

	if p.minScore > 0 && zxcvbn.PasswordStrength(password, nil).Score < p.minScore {
		return &PolicyViolation{
			Code:    ViolationWeak,
			Message: "password is too weak; choose a more complex value",
		}
	}
	return nil
}
