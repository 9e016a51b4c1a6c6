package usecase

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/infra/logger"
)

const (
	// VerificationSubject is the subject line of verification mails.
	VerificationSubject = "Verify Your Email Address - Readly"
	verifyEmailPath     = "/api/v1/auth/verify-email"
)

// Dispatch outcome labels.
const (
	dispatchDelivered = "delivered"
	dispatchExhausted = "exhausted"
	dispatchDropped   = "dropped"
)

// ErrDispatcherClosed is returned by Close when called twice.
var ErrDispatcherClosed = errors.New("mail dispatcher closed")

// MailDispatcherConfig tunes the verification mail worker pool.
type MailDispatcherConfig struct {
	BaseURL        string
	MaxAttempts    int
	Workers        int
	QueueSize      int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	SendTimeout    time.Duration
}

func (c MailDispatcherConfig) withDefaults() MailDispatcherConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// MailDispatcher delivers verification mails from a bounded queue with retries and
// exponential backoff. Callers never block on delivery.
type MailDispatcher struct {
	sender  port.MailSender
	cfg     MailDispatcherConfig
	metrics port.AuthMetrics
	logger  *zap.Logger
	now     func() time.Time

	queue  chan domain.VerificationMail
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewMailDispatcher starts cfg.Workers delivery goroutines.
func NewMailDispatcher(sender port.MailSender, cfg MailDispatcherConfig, metrics port.AuthMetrics, log *zap.Logger) *MailDispatcher {
	cfg = cfg.withDefaults()
	if metrics == nil {
		metrics = port.NopAuthMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &MailDispatcher{
		sender:  sender,
		cfg:     cfg,
		metrics: metrics,
		logger:  log,
		now:     func() time.Time { return time.Now().UTC() },
		queue:   make(chan domain.VerificationMail, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// DispatchVerification enqueues a verification mail. A full or closed queue drops the mail
// and the caller can ask for a resend.
func (d *MailDispatcher) DispatchVerification(ctx context.Context, identityID, to, rawToken string, expiresAt time.Time) {
	now := d.now()
	mail := domain.VerificationMail{
		EventID:     uuid.NewString(),
		IdentityID:  identityID,
		To:          to,
		Subject:     VerificationSubject,
		Link:        VerificationLink(d.cfg.BaseURL, rawToken),
		Token:       rawToken,
		TTLMinutes:  int(expiresAt.Sub(now).Round(time.Minute) / time.Minute),
		ExpiresAt:   expiresAt,
		RequestedAt: now,
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ctx, mail, "dispatcher closed")
		return
	}

	select {
	case d.queue <- mail:
	default:
		d.drop(ctx, mail, "queue full")
	}
}

// Close stops accepting mails and waits for queued ones until ctx expires.
func (d *MailDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *MailDispatcher) work() {
	defer d.wg.Done()
	for mail := range d.queue {
		d.deliver(mail)
	}
}

func (d *MailDispatcher) deliver(mail domain.VerificationMail) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.InitialBackoff
	policy.Multiplier = 2
	policy.MaxInterval = d.cfg.MaxBackoff

	attempt := 0
	_, err := backoff.Retry(d.ctx, func() (struct{}, error) {
		attempt++
		sendCtx, cancel := context.WithTimeout(d.ctx, d.cfg.SendTimeout)
		defer cancel()
		return struct{}{}, d.sender.SendVerification(sendCtx, mail)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(d.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.logger.Warn("verification mail attempt failed",
				zap.String("event_id", mail.EventID),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", next),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		d.metrics.ObserveMailDispatch(dispatchExhausted)
		d.logger.Error("verification mail not delivered",
			zap.String("event_id", mail.EventID),
			zap.String("identity_id", mail.IdentityID),
			zap.String("to", logger.MaskEmail(mail.To)),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return
	}

	d.metrics.ObserveMailDispatch(dispatchDelivered)
	d.logger.Info("verification mail handed off",
		zap.String("event_id", mail.EventID),
		zap.String("identity_id", mail.IdentityID),
		zap.Int("attempts", attempt),
	)
}

func (d *MailDispatcher) drop(ctx context.Context, mail domain.VerificationMail, reason string) {
	d.metrics.ObserveMailDispatch(dispatchDropped)
	logger.WithContext(ctx).Error("verification mail dropped",
		zap.String("reason", reason),
		zap.String("identity_id", mail.IdentityID),
		zap.String("to", logger.MaskEmail(mail.To)),
	)
}

// VerificationLink builds the address a user follows to verify their email.
func VerificationLink(baseURL, rawToken string) string {
	return strings.TrimRight(baseURL, "/") + verifyEmailPath + "?token=" + url.QueryEscape(rawToken)
}

var _ port.VerificationDispatcher = (*MailDispatcher)(nil)
