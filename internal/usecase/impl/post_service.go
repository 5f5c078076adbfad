package impl

import (
	"context"
	"log/slog"
	"strings"

	"postboard/config"
	deliverycontext "postboard/internal/delivery/context"
	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/repository"
	"postboard/internal/errors"
	"postboard/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// postService implements the PostUsecase interface.
type postService struct {
	txManager    repository.TransactionManager
	postRepo     repository.PostRepository
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// PostServiceParams holds dependencies for PostService, injected by Fx.
type PostServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	PostRepo  repository.PostRepository
	Config    *config.Config
	Logger    *slog.Logger
}

// NewPostService is the constructor for postService.
func NewPostService(params PostServiceParams) usecase.PostUsecase {
	srv := &postService{
		txManager:    params.TxManager,
		postRepo:     params.PostRepo,
		defaultLimit: defaultPageLimit,
		maxLimit:     maxPageLimit,
		logger:       params.Logger,
	}
	if params.Config != nil && params.Config.Pagination != nil {
		if params.Config.Pagination.DefaultLimit > 0 {
			srv.defaultLimit = params.Config.Pagination.DefaultLimit
		}
		if params.Config.Pagination.MaxLimit > 0 {
			srv.maxLimit = params.Config.Pagination.MaxLimit
		}
	}

	return srv
}

func (srv *postService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreatePost publishes a post for its author.
func (srv *postService) CreatePost(ctx context.Context, input usecase.CreatePostInput) (*entity.Post, error) {
	post := &entity.Post{
		AuthorID: input.AuthorID,
		Title:    strings.TrimSpace(input.Title),
		Body:     input.Body,
	}
	if err := validatePost(post); err != nil {
		return nil, err
	}

	if err := srv.postRepo.Create(ctx, post); err != nil {
		return nil, errors.Wrap(err, "failed to create post")
	}
	srv.log(ctx).Info("Post created", slog.Any("post_id", post.ID), slog.Any("author_id", post.AuthorID))

	return post, nil
}

// GetPost returns a single post.
func (srv *postService) GetPost(ctx context.Context, postID uuid.UUID) (*entity.Post, error) {
	post, err := srv.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find post")
	}

	return post, nil
}

// ListPosts returns one page of posts, newest first.
func (srv *postService) ListPosts(ctx context.Context, input usecase.ListPostsInput) (*usecase.ListPostsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = srv.defaultLimit
	}
	limit = min(limit, srv.maxLimit)
	offset := max(input.Offset, 0)

	posts, total, err := srv.postRepo.List(ctx, repository.PostListOptions{
		AuthorID: input.AuthorID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list posts")
	}

	return &usecase.ListPostsOutput{
		Posts:  posts,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// UpdatePost changes a post on behalf of its author.
func (srv *postService) UpdatePost(ctx context.Context, input usecase.UpdatePostInput) (*entity.Post, error) {
	var updated *entity.Post

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		postRepo := repoFactory.NewPostRepository()

		post, err := postRepo.FindByID(ctx, input.PostID)
		if err != nil {
			return errors.Wrap(err, "failed to find post")
		}
		if !post.IsAuthoredBy(input.ActorID) {
			return domainerrors.ErrForbidden.WrapMessage("only the author can edit this post")
		}

		if input.Title != nil {
			post.Title = strings.TrimSpace(*input.Title)
		}
		if input.Body != nil {
			post.Body = *input.Body
		}
		if err := validatePost(post); err != nil {
			return err
		}

		if err := postRepo.Update(ctx, post); err != nil {
			return errors.Wrap(err, "failed to update post")
		}
		updated = post

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute post update transaction")
	}
	srv.log(ctx).Info("Post updated", slog.Any("post_id", updated.ID))

	return updated, nil
}

// DeletePost removes a post on behalf of its author.
func (srv *postService) DeletePost(ctx context.Context, postID, actorID uuid.UUID) error {
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		postRepo := repoFactory.NewPostRepository()

		post, err := postRepo.FindByID(ctx, postID)
		if err != nil {
			return errors.Wrap(err, "failed to find post")
		}
		if !post.IsAuthoredBy(actorID) {
			return domainerrors.ErrForbidden.WrapMessage("only the author can delete this post")
		}

		if err := postRepo.Delete(ctx, postID); err != nil {
			return errors.Wrap(err, "failed to delete post")
		}

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to execute post delete transaction")
	}
	srv.log(ctx).Info("Post deleted", slog.Any("post_id", postID), slog.Any("actor_id", actorID))

	return nil
}

func validatePost(post *entity.Post) error {
	if post.Title == "" {
		return domainerrors.ErrValidationFailed.WrapMessage("title must not be empty")
	}
	if strings.TrimSpace(post.Body) == "" {
		return domainerrors.ErrValidationFailed.WrapMessage("body must not be empty")
	}

	return nil
}
