package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/infra/config"
	"github.com/fares7elsadek/Readly/internal/infra/logger"
)

const (
	schemaVersion = "1.0"
	// VerificationRequestedEvent names the event consumed by the mail delivery service.
	VerificationRequestedEvent = "mail.verification_requested"
)

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Subject   string            `json:"subject_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type verificationPayload struct {
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Template   string    `json:"template"`
	Link       string    `json:"verification_link"`
	Token      string    `json:"token"`
	TTLMinutes int       `json:"ttl_minutes"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// MailPublisher hands verification mails to the mail delivery service through Kafka.
type MailPublisher struct {
	producer *Producer
	appCfg   config.AppSettings
	logger   *zap.Logger
}

// NewMailPublisher constructs a Kafka-backed mail sender.
func NewMailPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *MailPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

// SendVerification publishes one verification request keyed by identity so retries for the
// same identity stay ordered.
func (p *MailPublisher) SendVerification(ctx context.Context, mail domain.VerificationMail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := mail.EventID
	if id == "" {
		id = uuid.NewString()
	}
	ts := mail.RequestedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(eventEnvelope{
		EventID:   id,
		EventType: VerificationRequestedEvent,
		Subject:   mail.IdentityID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload: verificationPayload{
			To:         mail.To,
			Subject:    mail.Subject,
			Template:   "email-verification",
			Link:       mail.Link,
			Token:      mail.Token,
			TTLMinutes: mail.TTLMinutes,
			ExpiresAt:  mail.ExpiresAt.UTC(),
		},
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal verification event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(VerificationRequestedEvent),
		Key:   sarama.StringEncoder(mail.IdentityID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(VerificationRequestedEvent)},
			{Key: []byte("event_id"), Value: []byte(id)},
		},
	}

	if err := p.producer.Send(message); err != nil {
		return err
	}

	p.logger.Debug("verification mail published",
		zap.String("event_id", id),
		zap.String("to", logger.MaskEmail(mail.To)),
	)
	return nil
}

var _ port.MailSender = (*MailPublisher)(nil)
