package security

import "errors"

// historyDepth is how many previous password hashes are checked on change.
const historyDepth = 5

// ValidatePassword checks password complexity. Returns an error describing
// the first failed requirement.
func ValidatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters")
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		case r < '0' || (r > '9' && r < 'A') || (r > 'Z' && r < 'a') || r > 'z':
			hasSymbol = true
		}
	}
	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return errors.New("password must contain at least one number")
	}
	if !hasSymbol {
		return errors.New("password must contain at least one symbol")
	}
	return nil
}

// NotRecentlyUsed verifies password against up to the five most recent
// history hashes. Returns false when the password matches any of them.
// history must be ordered newest first.
func (h *Hasher) NotRecentlyUsed(history []string, password string) bool {
	if len(history) > historyDepth {
		history = history[:historyDepth]
	}
	for _, hash := range history {
		if h.Compare(hash, []byte(password)) == nil {
			return false
		}
	}
	return true
}
