package security

import "golang.org/x/crypto/bcrypt"

// Hasher wraps bcrypt for password and recovery-code hashing. The cost is
// fixed at construction so every hash in a deployment is comparable.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost, clamped to the
// range bcrypt accepts. Non-positive cost falls back to bcrypt's default.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns the bcrypt hash of password as a storable string.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare checks password against a stored hash. nil means a match; bcrypt's
// comparison does not leak where the mismatch occurred.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
