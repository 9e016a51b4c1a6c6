package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrAccountDisabled = errors.New("account not verified")
	ErrTooManyAttempts = errors.New("too many failed login attempts")
	ErrInvalidToken    = errors.New("invalid token")
	ErrValidation      = errors.New("validation failed")
	ErrInfrastructure  = errors.New("infrastructure failure")
)

// TokenFailure names the reason a token was rejected.
type TokenFailure string

const (
	TokenNotFound        TokenFailure = "not_found"
	TokenExpired         TokenFailure = "expired"
	TokenAlreadyConsumed TokenFailure = "already_consumed"
	TokenWrongKind       TokenFailure = "wrong_kind"
	TokenBadSignature    TokenFailure = "bad_signature"
	TokenMalformed       TokenFailure = "malformed"
)

// InvalidTokenError reports a rejected token together with the failing check.
type InvalidTokenError struct {
	Reason TokenFailure
	Err    error
}

// InvalidToken builds an InvalidTokenError for the given reason.
func InvalidToken(reason TokenFailure, cause error) error {
	return &InvalidTokenError{Reason: reason, Err: cause}
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid token (%s)", e.Reason)
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

// Is matches ErrInvalidToken and any InvalidTokenError with the same reason.
func (e *InvalidTokenError) Is(target error) bool {
	if target == ErrInvalidToken {
		return true
	}
	var other *InvalidTokenError
	if errors.As(target, &other) {
		return other.Reason == e.Reason
	}
	return false
}

// TokenFailureOf extracts the rejection reason from err.
func TokenFailureOf(err error) (TokenFailure, bool) {
	var invalid *InvalidTokenError
	if errors.As(err, &invalid) {
		return invalid.Reason, true
	}
	return "", false
}

// ValidationError carries per-field messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InfrastructureError wraps store, broker or mail failures that carry no business meaning.
type InfrastructureError struct {
	Op  string
	Err error
}

// Infrastructure wraps err as an InfrastructureError for operation op.
func Infrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InfrastructureError{Op: op, Err: err}
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }
