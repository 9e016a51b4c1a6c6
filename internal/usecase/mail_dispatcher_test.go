package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/fares7elsadek/Readly/internal/core/domain"
)

type flakySender struct {
	mu        sync.Mutex
	failures  int
	calls     int
	delivered []domain.VerificationMail
	block     chan struct{}
}

func (s *flakySender) SendVerification(ctx context.Context, mail domain.VerificationMail) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("smtp unavailable")
	}
	s.delivered = append(s.delivered, mail)
	return nil
}

func (s *flakySender) snapshot() (int, []domain.VerificationMail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]domain.VerificationMail(nil), s.delivered...)
}

func fastDispatcherConfig(maxAttempts int) MailDispatcherConfig {
	return MailDispatcherConfig{
		BaseURL:        "https://readly.example/",
		MaxAttempts:    maxAttempts,
		Workers:        1,
		QueueSize:      4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		SendTimeout:    time.Second,
	}
}

func TestMailDispatcherRetriesUntilDelivered(t *testing.T) {
	sender := &flakySender{failures: 2}
	metrics := newCountingMetrics()
	dispatcher := NewMailDispatcher(sender, fastDispatcherConfig(3), metrics, zaptest.NewLogger(t))

	expiresAt := time.Now().UTC().Add(24 * time.Hour)
	dispatcher.DispatchVerification(context.Background(), "id-1", "reader@x.com", "raw+token/value", expiresAt)

	if err := dispatcher.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	calls, delivered := sender.snapshot()
	if calls != 3 || len(delivered) != 1 {
		t.Fatalf("expected delivery on third attempt, calls=%d delivered=%d", calls, len(delivered))
	}
	mail := delivered[0]
	if mail.Subject != VerificationSubject {
		t.Fatalf("unexpected subject %q", mail.Subject)
	}
	if mail.Link != "https://readly.example/api/v1/auth/verify-email?token=raw%2Btoken%2Fvalue" {
		t.Fatalf("unexpected link %q", mail.Link)
	}
	if mail.TTLMinutes != 24*60 {
		t.Fatalf("unexpected ttl minutes %d", mail.TTLMinutes)
	}
	if metrics.get("mail:delivered") != 1 {
		t.Fatalf("expected delivered metric, got %v", metrics.counts)
	}
}

func TestMailDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	sender := &flakySender{failures: 10}
	metrics := newCountingMetrics()
	dispatcher := NewMailDispatcher(sender, fastDispatcherConfig(2), metrics, zaptest.NewLogger(t))

	dispatcher.DispatchVerification(context.Background(), "id-1", "reader@x.com", "raw", time.Now().Add(time.Hour))
	if err := dispatcher.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if calls, _ := sender.snapshot(); calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if metrics.get("mail:exhausted") != 1 {
		t.Fatalf("expected exhausted metric, got %v", metrics.counts)
	}
}

func TestMailDispatcherDropsWhenQueueFull(t *testing.T) {
	sender := &flakySender{block: make(chan struct{})}
	metrics := newCountingMetrics()
	cfg := fastDispatcherConfig(1)
	cfg.QueueSize = 1
	dispatcher := NewMailDispatcher(sender, cfg, metrics, zaptest.NewLogger(t))

	// One mail is held by the worker, one waits in the queue, the rest are dropped.
	for i := 0; i < 5; i++ {
		dispatcher.DispatchVerification(context.Background(), "id", "reader@x.com", "raw", time.Now().Add(time.Hour))
		time.Sleep(5 * time.Millisecond)
	}
	if dropped := metrics.get("mail:dropped"); dropped < 3 {
		t.Fatalf("expected at least 3 dropped mails, got %d", dropped)
	}

	close(sender.block)
	if err := dispatcher.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dispatcher.DispatchVerification(context.Background(), "id", "reader@x.com", "raw", time.Now().Add(time.Hour))
	if err := dispatcher.Close(context.Background()); !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}

func TestVerificationLink(t *testing.T) {
	if got := VerificationLink("http://localhost:8080", "abc_DEF-123"); got != "http://localhost:8080/api/v1/auth/verify-email?token=abc_DEF-123" {
		t.Fatalf("unexpected link %q", got)
	}
}
