package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token is malformed, expired, or invalid.
var ErrInvalidToken = errors.New("invalid token")

// ResetClaims holds JWT claims for a password-reset token.
type ResetClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// ResetTokenProvider issues and validates password-reset JWTs using RS256 or
// ES256 (private/public key). Reset tokens are single-purpose and short-lived;
// consuming code must also clear needs_password_reset and lockout state.
type ResetTokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
}

// NewResetTokenProvider returns a ResetTokenProvider that signs with the given
// private key (RS256 or ES256). issuer and audience are set on claims and
// validated on parse.
func NewResetTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *ResetTokenProvider {
	return &ResetTokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// IssueReset issues a reset token for the given user. Returns the token string
// and its expiration time.
func (p *ResetTokenProvider) IssueReset(userID, email string) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}

	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", time.Time{}, ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	token, err = t.SignedString(p.privateKey)
	return token, expiresAt, err
}

// ValidateReset parses and validates a reset token (signature, exp, iss, aud).
// Returns the user id and email it was issued for.
func (p *ResetTokenProvider) ValidateReset(tokenString string) (userID, email string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &ResetClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*ResetClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", "", ErrInvalidToken
	}
	audOK := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOK = true
			break
		}
	}
	if !audOK {
		return "", "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Email, nil
}
