package domain

import "time"

// RecoveryCode is a single-use backup code. Only the bcrypt hash is stored;
// the plaintext is shown to the user exactly once, at generation time.
type RecoveryCode struct {
	ID        string
	UserID    string
	CodeHash  string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Used reports whether the code has already been redeemed.
func (c *RecoveryCode) Used() bool {
	return c.UsedAt != nil
}
