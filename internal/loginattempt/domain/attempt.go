package domain

import "time"

// LoginAttempt is one append-only row per login try. Never mutated after
// creation.
type LoginAttempt struct {
	ID            string
	Email         string
	IP            string
	UserAgent     string
	Success       bool
	FailureReason string // empty on full success, a note on other outcomes
	CreatedAt     time.Time
}

// Failure reasons recorded on failed attempts.
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonAccountLocked      = "account_locked"
	ReasonAccountInactive    = "account_inactive"
	ReasonPasswordExpired    = "password_expired"
)

// NoteMFAPending annotates a successful credential check that still awaits
// MFA completion. The row counts as the attempt for that login try.
const NoteMFAPending = "mfa_pending"
