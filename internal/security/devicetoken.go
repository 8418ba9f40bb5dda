package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// deviceTokenBytes is the entropy of a raw device-trust token.
const deviceTokenBytes = 64

// NewDeviceToken returns a high-entropy random token for device trust,
// base64url-encoded. The raw token is handed to the client exactly once;
// only its hash is persisted.
func NewDeviceToken() (string, error) {
	b := make([]byte, deviceTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashDeviceToken returns a SHA-256 hash of the raw token, hex-encoded.
// Used for storing and looking up device-trust tokens without the raw value.
func HashDeviceToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// DeviceTokenHashEqual performs constant-time comparison of the provided
// token's hash with the stored hash. Returns true only if they match.
func DeviceTokenHashEqual(providedToken, storedHash string) bool {
	providedHash := HashDeviceToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
