package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"
)

// ErrInvalidKey is returned for malformed PEM or an unsupported key type.
var ErrInvalidKey = errors.New("invalid key")

// LoadPEM accepts either inline PEM or a path to a PEM file and returns the
// raw bytes. Config values can therefore hold the key directly or point at
// a mounted secret.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(s), nil
	}
	return os.ReadFile(s)
}

func decodeBlock(s string) (*pem.Block, error) {
	raw, err := LoadPEM(s)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, ErrInvalidKey
	}
	return block, nil
}

// ParsePrivateKey parses an RSA or ECDSA private key used to sign
// password-reset tokens.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	block, err := decodeBlock(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if signer, ok := key.(crypto.Signer); ok {
			return signer, nil
		}
		return nil, ErrInvalidKey
	}
	return nil, ErrInvalidKey
}

// ParsePublicKey parses the matching RSA or ECDSA public key.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	block, err := decodeBlock(s)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	}
	return nil, ErrInvalidKey
}

// KeyAlg maps the public key type to its JWT signing algorithm: RS256 for
// RSA, ES256 for ECDSA. Empty for anything else.
func KeyAlg(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "RS256"
	case *ecdsa.PublicKey:
		return "ES256"
	}
	return ""
}
