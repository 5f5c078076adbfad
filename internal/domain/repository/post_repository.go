package repository

import (
	"context"

	"postboard/internal/domain/entity"

	"github.com/google/uuid"
)

// PostListOptions pages through posts, newest first.
type PostListOptions struct {
	AuthorID *uuid.UUID
	Limit    int
	Offset   int
}

// PostRepository defines persistence for posts.
// Misses are reported as domainerrors.ErrPostNotFound.
type PostRepository interface {
	Create(ctx context.Context, post *entity.Post) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error)
	List(ctx context.Context, opts PostListOptions) ([]*entity.Post, int64, error)
	Update(ctx context.Context, post *entity.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
}
