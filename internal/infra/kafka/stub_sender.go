package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/infra/logger"
)

// StubMailSender logs verification mails instead of publishing them. Useful when Kafka is disabled.
type StubMailSender struct {
	logger *zap.Logger
}

// NewStubMailSender constructs a development-friendly mail sender.
func NewStubMailSender(logger *zap.Logger) *StubMailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubMailSender{logger: logger}
}

// SendVerification logs the link so developers can verify accounts locally.
func (s *StubMailSender) SendVerification(_ context.Context, mail domain.VerificationMail) error {
	s.logger.Info("Stub verification mail",
		zap.String("event_id", mail.EventID),
		zap.String("identity_id", mail.IdentityID),
		zap.String("to", logger.MaskEmail(mail.To)),
		zap.String("subject", mail.Subject),
		zap.String("link", mail.Link),
		zap.Time("expires_at", mail.ExpiresAt),
	)
	return nil
}

var _ port.MailSender = (*StubMailSender)(nil)
