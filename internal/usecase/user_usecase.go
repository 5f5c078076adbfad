package usecase

import (
	"context"

	"postboard/internal/domain/entity"

	"github.com/google/uuid"
)

// UpdateProfileInput carries the editable fields of an account.
type UpdateProfileInput struct {
	UserID uuid.UUID
	Name   string
}

// UserUsecase defines the interface for account self-service.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type UserUsecase interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	UpdateProfile(ctx context.Context, input UpdateProfileInput) (*entity.User, error)
}
