// Package lockout maps a user's failed-login count to a lockout duration.
package lockout

import "time"

// Minutes returns the lockout duration in minutes for the given failed-attempt
// count. The count is the value after the current failure was added. Zero
// means no lockout is applied.
//
//	< 5   -> 0
//	5..9  -> 15
//	10..14 -> 60
//	>= 15 -> 1440 (24h; cleared only by password reset or admin action)
func Minutes(failedAttempts int) int {
	switch {
	case failedAttempts < 5:
		return 0
	case failedAttempts < 10:
		return 15
	case failedAttempts < 15:
		return 60
	default:
		return 1440
	}
}

// Duration is Minutes expressed as a time.Duration.
func Duration(failedAttempts int) time.Duration {
	return time.Duration(Minutes(failedAttempts)) * time.Minute
}
