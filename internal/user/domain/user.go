package domain

import (
	"errors"
	"time"
)

// User is the core user entity.
type User struct {
	ID           string
	CompanyID    string
	Email        string
	Name         string
	PasswordHash string
	Status       UserStatus
	// FailedLoginAttempts counts consecutive failed logins; reset to 0 on any
	// successful login or password reset.
	FailedLoginAttempts int
	// LockedUntil is nil when the account is not locked. It is set only when
	// FailedLoginAttempts crosses a lockout threshold.
	LockedUntil *time.Time
	// NeedsPasswordReset forces a password change before a session is issued.
	NeedsPasswordReset bool
	MFAEnabled         bool
	MFAEnabledAt       *time.Time
	LastLoginAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// Locked reports whether the account is locked at the given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.CompanyID == "" {
		return errors.New("company id is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}
