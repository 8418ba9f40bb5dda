package mfa

import (
	"crypto/rand"
	"strings"
)

// recoveryAlphabet deliberately omits 0/O/1/I to keep the codes readable
// when written down.
const recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	recoveryCodeCount   = 10
	recoveryGroupLength = 4
	recoveryGroups      = 3
)

// GenerateRecoveryCodes returns 10 fresh backup codes in the form
// XXXX-XXXX-XXXX. Callers hash them before storage; plaintext is shown to
// the user once and never kept.
func GenerateRecoveryCodes() ([]string, error) {
	codes := make([]string, recoveryCodeCount)
	for i := range codes {
		code, err := generateRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

func generateRecoveryCode() (string, error) {
	raw := make([]byte, recoveryGroupLength*recoveryGroups)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	var b strings.Builder
	for i, c := range raw {
		if i > 0 && i%recoveryGroupLength == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(recoveryAlphabet[int(c)%len(recoveryAlphabet)])
	}
	return b.String(), nil
}

// NormalizeRecoveryCode uppercases the input and strips separators and
// spaces, so users can type codes however they copied them.
func NormalizeRecoveryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	code = strings.ReplaceAll(code, " ", "")
	return code
}
