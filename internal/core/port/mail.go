package port

import (
	"context"
	"time"

	"github.com/fares7elsadek/Readly/internal/core/domain"
)

// MailSender hands a verification mail to the delivery collaborator. It may fail; retrying
// is the dispatcher's job.
type MailSender interface {
	SendVerification(ctx context.Context, mail domain.VerificationMail) error
}

// VerificationDispatcher schedules verification mail delivery without blocking the caller.
type VerificationDispatcher interface {
	DispatchVerification(ctx context.Context, identityID, to, rawToken string, expiresAt time.Time)
}
