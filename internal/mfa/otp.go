package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const codeDigits = 6

// GenerateCode returns a 6-digit numeric verification code (e.g. "047291").
// Uses crypto/rand for randomness. Bytes of 250 and above are discarded so
// every digit is equally likely.
func GenerateCode() (string, error) {
	s := make([]byte, 0, codeDigits)
	buf := make([]byte, codeDigits)
	for len(s) < codeDigits {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			s = append(s, '0'+b%10)
			if len(s) == codeDigits {
				break
			}
		}
	}
	return string(s), nil
}

// HashCode returns a SHA-256 hash of the code, hex-encoded.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual compares the provided code against the stored hash in constant
// time. Codes of the wrong length never match.
func CodeEqual(provided, storedHash string) bool {
	if len(provided) != codeDigits {
		return false
	}
	providedHash := HashCode(provided)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
