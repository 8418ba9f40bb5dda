package domain

import "time"

// Challenge is a pending email-code verification for one user. At most one
// challenge exists per user; issuing a new code overwrites it. Attempt
// counting lives in the challenge store, not here.
type Challenge struct {
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the challenge is past its expiry at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
