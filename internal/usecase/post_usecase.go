package usecase

import (
	"context"

	"postboard/internal/domain/entity"

	"github.com/google/uuid"
)

// CreatePostInput defines the data required to publish a post.
type CreatePostInput struct {
	AuthorID uuid.UUID
	Title    string
	Body     string
}

// UpdatePostInput changes the non-nil fields of a post. Only the author may do so.
type UpdatePostInput struct {
	PostID  uuid.UUID
	ActorID uuid.UUID
	Title   *string
	Body    *string
}

// ListPostsInput pages through posts, newest first.
// A zero Limit means the configured default; values above the maximum are clamped.
type ListPostsInput struct {
	AuthorID *uuid.UUID
	Limit    int
	Offset   int
}

// ListPostsOutput is one page of posts.
type ListPostsOutput struct {
	Posts  []*entity.Post
	Total  int64
	Limit  int
	Offset int
}

// PostUsecase defines the interface for post management.
type PostUsecase interface {
	CreatePost(ctx context.Context, input CreatePostInput) (*entity.Post, error)
	GetPost(ctx context.Context, postID uuid.UUID) (*entity.Post, error)
	ListPosts(ctx context.Context, input ListPostsInput) (*ListPostsOutput, error)
	UpdatePost(ctx context.Context, input UpdatePostInput) (*entity.Post, error)
	DeletePost(ctx context.Context, postID, actorID uuid.UUID) error
}
