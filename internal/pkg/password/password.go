// Package password provides the one-way credential hashing capability
// consumed by the auth service: hash(secret) -> digest and
// compare(secret, digest) -> bool.
package password

import "golang.org/x/crypto/bcrypt"

// Manager hashes and verifies passwords with bcrypt.
type Manager struct {
	cost int
}

// NewManager returns a Manager. A cost outside bcrypt's valid range falls
// back to the library default.
func NewManager(cost int) *Manager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Manager{cost: cost}
}

// Hash returns the digest for secret.
func (m *Manager) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), m.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Compare reports whether secret matches digest.
func (m *Manager) Compare(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
