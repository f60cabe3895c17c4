package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with the given cost. Costs outside
// bcrypt's range fall back to bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), normalizeCost(cost))
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// HashCost returns the cost an operator hash was generated with, failing for
// values that are not bcrypt hashes.
func HashCost(hashed string) (int, error) {
	cost, err := bcrypt.Cost([]byte(hashed))
	if err != nil {
		return 0, fmt.Errorf("not a bcrypt hash: %w", err)
	}
	return cost, nil
}

// NeedsRehash reports whether hashed is weaker than the configured cost.
func NeedsRehash(hashed string, cost int) bool {
	current, err := HashCost(hashed)
	return err != nil || current < normalizeCost(cost)
}

func normalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}
