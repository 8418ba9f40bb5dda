package domain

import "time"

// Session represents one authenticated (or MFA-pending) browser/device session.
//
// Invariant: ExpiresAt never exceeds AbsoluteExpiresAt. A session with
// MFAVerified false must not be treated as authenticated.
type Session struct {
	// SID is the opaque session identifier (a UUID).
	SID string
	// UserID is empty until a user is attached at login.
	UserID    string
	CompanyID string
	// Source is the device class / client kind (e.g. "web", "mobile"). One
	// session per (user, source) pair.
	Source    string
	IP        string
	UserAgent string
	// MFAVerified is false while an MFA challenge is still outstanding.
	MFAVerified bool
	// Data is an arbitrary key-value payload.
	Data map[string]string
	// ExpiresAt is the sliding expiry, moved forward on activity.
	ExpiresAt time.Time
	// AbsoluteExpiresAt is the hard ceiling set at full authentication.
	AbsoluteExpiresAt time.Time
	LastActivityAt    time.Time
	CreatedAt         time.Time
}

// DataRememberMe marks a pending-MFA session whose login asked for the longer
// sliding window. Removed once MFA completes.
const DataRememberMe = "remember_me"

// Expired reports whether the session is past either expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt) || now.After(s.AbsoluteExpiresAt)
}
