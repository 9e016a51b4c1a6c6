package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/infra/logger"
)

const loginAttemptPrefix = "login:"

// LoginThrottleConfig bounds failed logins per email.
type LoginThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// LoginThrottle counts failed logins per normalized email on a sliding window.
// Store failures are logged and never block a login.
type LoginThrottle struct {
	store port.RateLimitStore
	cfg   LoginThrottleConfig
	now   func() time.Time
}

// NewLoginThrottle returns nil when throttling is disabled by configuration.
func NewLoginThrottle(store port.RateLimitStore, cfg LoginThrottleConfig) *LoginThrottle {
	if store == nil || cfg.MaxAttempts <= 0 || cfg.Window <= 0 {
		return nil
	}
	return &LoginThrottle{store: store, cfg: cfg, now: time.Now}
}

// WithClock overrides the time source.
func (t *LoginThrottle) WithClock(now func() time.Time) *LoginThrottle {
	if now == nil {
		return t
	}
	clone := *t
	clone.now = now
	return &clone
}

// Check fails with domain.ErrTooManyAttempts once the email exhausted its failed attempts.
func (t *LoginThrottle) Check(ctx context.Context, email string) error {
	if email == "" {
		return nil
	}
	key := loginAttemptPrefix + email
	now := t.now()

	if err := t.store.TrimWindow(ctx, key, t.cfg.Window, now); err != nil {
		t.warn(ctx, "trim login attempts", email, err)
		return nil
	}
	count, err := t.store.CountAttempts(ctx, key, t.cfg.Window, now)
	if err != nil {
		t.warn(ctx, "count login attempts", email, err)
		return nil
	}
	if count >= t.cfg.MaxAttempts {
		return domain.ErrTooManyAttempts
	}
	return nil
}

// RecordFailure adds one failed attempt for email.
func (t *LoginThrottle) RecordFailure(ctx context.Context, email string) {
	if email == "" {
		return
	}
	if err := t.store.RecordAttempt(ctx, loginAttemptPrefix+email, t.now()); err != nil {
		t.warn(ctx, "record login attempt", email, err)
	}
}

// Reset clears the failed attempts of email after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email string) {
	if err := t.store.Reset(ctx, loginAttemptPrefix+email); err != nil {
		t.warn(ctx, "reset login attempts", email, err)
	}
}

func (t *LoginThrottle) warn(ctx context.Context, msg, email string, err error) {
	logger.WithContext(ctx).Warn(msg,
		zap.String("email", logger.MaskEmail(email)),
		zap.Error(err),
	)
}
