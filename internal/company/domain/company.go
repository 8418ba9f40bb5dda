package domain

import "time"

// Company is the tenant entity. Auth only reads its policy knobs.
type Company struct {
	ID   string
	Name string
	// MFARequired forces the MFA step for every user of the company, even
	// when the user has not enabled MFA themselves.
	MFARequired bool
	// MaxSessionsPerUser caps concurrent sessions per user; 0 means use the
	// service-wide default.
	MaxSessionsPerUser int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
