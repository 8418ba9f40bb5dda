package domain

import "time"

// TrustedDevice is a device allowed to skip the MFA challenge for its user.
// DeviceFingerprint is the SHA-256 of the opaque token held by the client;
// the raw token is never stored.
type TrustedDevice struct {
	ID                string
	UserID            string
	DeviceFingerprint string
	DeviceName        string
	LastSeenAt        *time.Time
	LastIPAddress     string
	TrustExpiresAt    time.Time
	CreatedAt         time.Time
}

// Expired reports whether the trust window has closed at now.
func (d *TrustedDevice) Expired(now time.Time) bool {
	return now.After(d.TrustExpiresAt)
}
