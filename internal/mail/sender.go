package mail

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrNotConfigured is returned when no mail provider credentials are set.
var ErrNotConfigured = errors.New("mail: provider not configured")

// Sender delivers a verification code to an email address. ttl tells the
// template how long the code stays valid.
type Sender interface {
	SendCode(ctx context.Context, address, code string, ttl time.Duration) error
}

// LogSender writes codes to the process log instead of sending mail.
// For local development only.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, address, code string, ttl time.Duration) error {
	log.Printf("mail (dev): verification code for %s: %s (valid %s)", address, code, ttl)
	return nil
}
