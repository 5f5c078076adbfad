// Package service defines interfaces for core, stateless domain logic.
// These services encapsulate business rules that don't naturally fit within a single entity.
package service

// PasswordHasher defines the interface for password hashing and verification.
// This abstracts the underlying hashing algorithm (argon2id), keeping the domain pure.
type PasswordHasher interface {
	// Hash generates a hash from a plaintext secret using a fresh random salt.
	Hash(secret string) (string, error)

	// Verify compares a plaintext secret with a stored hash.
	// A mismatch is (false, nil); a malformed hash is (false, err).
	Verify(secret, hash string) (bool, error)

	// ValidatePasswordStrength checks a sign-up password against the configured rules.
	ValidatePasswordStrength(password string) error
}
