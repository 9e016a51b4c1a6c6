package domain

import "time"

// VerificationMail is the hand-off payload for the mail collaborator that renders and sends
// the account verification email.
type VerificationMail struct {
	EventID     string
	IdentityID  string
	To          string
	Subject     string
	Link        string
	Token       string
	TTLMinutes  int
	ExpiresAt   time.Time
	RequestedAt time.Time
}
