package security

import "golang.org/x/crypto/bcrypt"

// Hasher hashes passwords with bcrypt. The salt is generated per call and stored inside the digest.
type Hasher struct {
	cost int
}

// NewHasher clamps cost to bcrypt's [MinCost, MaxCost]. A non-positive cost
// means unset and selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}

	return &Hasher{cost: cost}
}

// Hash password hashes a plain text password with bcrypt.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Verify compares a bcrypt digest with a plaintext password.
// An empty digest never matches.
func (h *Hasher) Verify(plain, digest string) bool {
	if digest == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

func (h *Hasher) Cost() int {
	return h.cost
}
