package security

import "golang.org/x/crypto/bcrypt"

// MinPasswordCost is the lowest accepted bcrypt work factor.
const MinPasswordCost = 12

// PasswordHasher wraps bcrypt with an enforced minimum cost.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < MinPasswordCost {
		cost = MinPasswordCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash derives a salted one-way hash of the plaintext. The plaintext is
// never logged or echoed back by any caller of this package.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plaintext matches the stored hash. A malformed
// stored hash yields false rather than an error, so callers cannot tell
// a corrupt record apart from a wrong password.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
