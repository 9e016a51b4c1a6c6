package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap/zaptest"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/infra/config"
)

func newTestPublisher(t *testing.T, sp *mocks.SyncProducer) *MailPublisher {
	t.Helper()
	producer := NewProducerWith(sp, config.KafkaSettings{TopicPrefix: "readly"}, zaptest.NewLogger(t))
	return NewMailPublisher(producer, config.AppSettings{Name: "readly-auth", Env: "test"}, zaptest.NewLogger(t))
}

func TestMailPublisherSendVerification(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer func() {
		if err := sp.Close(); err != nil {
			t.Fatalf("close mock producer: %v", err)
		}
	}()

	expiresAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mail := domain.VerificationMail{
		EventID:     "event-1",
		IdentityID:  "id-1",
		To:          "reader@example.com",
		Subject:     "Verify Your Email Address - Readly",
		Link:        "https://readly.example/api/v1/auth/verify-email?token=abc",
		Token:       "abc",
		TTLMinutes:  1440,
		ExpiresAt:   expiresAt,
		RequestedAt: expiresAt.Add(-24 * time.Hour),
	}

	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "readly.mail.verification_requested" {
			return fmt.Errorf("unexpected topic %q", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != "id-1" {
			return fmt.Errorf("unexpected key %q (%v)", key, err)
		}

		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var envelope struct {
			EventID   string            `json:"event_id"`
			EventType string            `json:"event_type"`
			SubjectID string            `json:"subject_id"`
			Metadata  map[string]string `json:"metadata"`
			Payload   struct {
				To         string `json:"to"`
				Link       string `json:"verification_link"`
				TTLMinutes int    `json:"ttl_minutes"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return err
		}
		if envelope.EventID != "event-1" || envelope.EventType != VerificationRequestedEvent || envelope.SubjectID != "id-1" {
			return fmt.Errorf("unexpected envelope %+v", envelope)
		}
		if envelope.Payload.To != mail.To || envelope.Payload.Link != mail.Link || envelope.Payload.TTLMinutes != 1440 {
			return fmt.Errorf("unexpected payload %+v", envelope.Payload)
		}
		if envelope.Metadata["service"] != "readly-auth" {
			return fmt.Errorf("unexpected metadata %v", envelope.Metadata)
		}
		return nil
	})

	if err := newTestPublisher(t, sp).SendVerification(context.Background(), mail); err != nil {
		t.Fatalf("SendVerification: %v", err)
	}
}

func TestMailPublisherReportsBrokerFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer func() { _ = sp.Close() }()

	sp.ExpectSendMessageAndFail(sarama.ErrNotEnoughReplicas)

	err := newTestPublisher(t, sp).SendVerification(context.Background(), domain.VerificationMail{IdentityID: "id-1"})
	if !errors.Is(err, sarama.ErrNotEnoughReplicas) {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestMailPublisherHonoursCancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	defer func() { _ = sp.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := newTestPublisher(t, sp).SendVerification(ctx, domain.VerificationMail{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProducerTopicName(t *testing.T) {
	p := NewProducerWith(nil, config.KafkaSettings{TopicPrefix: "readly"}, nil)
	if got := p.TopicName("mail.verification_requested"); got != "readly.mail.verification_requested" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := p.TopicName("readly.mail.verification_requested"); got != "readly.mail.verification_requested" {
		t.Fatalf("prefix must not be doubled, got %q", got)
	}

	bare := NewProducerWith(nil, config.KafkaSettings{}, nil)
	if got := bare.TopicName("mail.verification_requested"); got != "mail.verification_requested" {
		t.Fatalf("unexpected unprefixed topic %q", got)
	}
}
