// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus describes whether an account may be used.
type UserStatus string

const (
	// UserStatusActive marks a regular, usable account.
	UserStatusActive UserStatus = "active"
	// UserStatusDisabled marks an account switched off by an operator.
	UserStatusDisabled UserStatus = "disabled"
)

// String returns the string representation of the UserStatus.
func (s UserStatus) String() string {
	return string(s)
}

// IsValid checks if the UserStatus is a known value.
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusDisabled:
		return true
	default:
		return false
	}
}

// User is the account entity. The auth core reads it, hashes its password on
// sign-up and strips the hash before handing it back to callers.
type User struct {
	ID           uuid.UUID  // The Global Unique Identifier (GUID) for the user.
	Name         string     // The user's display name.
	Email        string     // Unique login identifier.
	PasswordHash string     // PHC-encoded argon2id hash. Empty once HidePassword has run.
	Status       UserStatus // Account status.
	CreatedAt    time.Time  // Timestamp of when this user account was created.
	UpdatedAt    time.Time  // Timestamp of the last modification to this user's data.
}

// HidePassword removes the password hash from the projection.
func (u *User) HidePassword() *User {
	if u == nil {
		return nil
	}
	u.PasswordHash = ""

	return u
}
