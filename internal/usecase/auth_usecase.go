// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"postboard/internal/domain/entity"
)

// --- Input DTOs ---

// SignUpInput defines the data required to register a new account.
type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

// SignInInput defines the data required for a user to log in.
type SignInInput struct {
	Email    string
	Password string
}

// --- Output DTOs ---

// AuthOutput is returned by every flow that issues a session.
// User never carries a password hash.
type AuthOutput struct {
	User   *entity.User
	Tokens *entity.GeneratedAuthTokens
}

// AuthUsecase defines the session lifecycle: sign-up, sign-in, rotation and logout.
type AuthUsecase interface {
	// SignUp creates the account and opens its first session.
	SignUp(ctx context.Context, input SignUpInput) (*AuthOutput, error)

	// SignIn verifies credentials, revokes every previous session of the user and opens a new one.
	SignIn(ctx context.Context, input SignInInput) (*AuthOutput, error)

	// Refresh exchanges a refresh token for a new token pair. The presented token is single-use.
	Refresh(ctx context.Context, refreshToken string) (*AuthOutput, error)

	// Logout revokes the presented refresh token. An unknown jti is not an error.
	Logout(ctx context.Context, refreshToken string) error
}
