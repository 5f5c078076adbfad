package impl

import (
	"context"
	"testing"

	"postboard/config"
	"postboard/internal/domain/entity"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/domain/repository"
	"postboard/internal/errors"
	mockRepo "postboard/internal/mocks/repository"
	"postboard/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// postServiceFixtures holds all test dependencies for post service tests.
type postServiceFixtures struct {
	service   usecase.PostUsecase
	txManager *mockRepo.MockTransactionManager
	postRepo  *mockRepo.MockPostRepository
	txPosts   *mockRepo.MockPostRepository
}

func createTestPostService(t *testing.T) postServiceFixtures {
	txManager := mockRepo.NewMockTransactionManager(t)
	postRepo := mockRepo.NewMockPostRepository(t)

	svc := NewPostService(PostServiceParams{
		TxManager: txManager,
		PostRepo:  postRepo,
		Config:    &config.Config{Pagination: &config.PaginationConfig{DefaultLimit: 10, MaxLimit: 50}},
		Logger:    newDiscardLogger(),
	})

	return postServiceFixtures{
		service:   svc,
		txManager: txManager,
		postRepo:  postRepo,
		txPosts:   mockRepo.NewMockPostRepository(t),
	}
}

func (f postServiceFixtures) expectTransaction(t *testing.T) {
	factory := mockRepo.NewMockRepositoryFactory(t)
	factory.EXPECT().NewPostRepository().Return(f.txPosts)
	f.txManager.EXPECT().
		Execute(mock.Anything, mock.AnythingOfType("func(repository.RepositoryFactory) error")).
		RunAndReturn(func(_ context.Context, fn func(repository.RepositoryFactory) error) error {
			return fn(factory)
		})
}

func TestPostService_CreatePost(t *testing.T) {
	f := createTestPostService(t)
	authorID := uuid.New()
	f.postRepo.EXPECT().
		Create(mock.Anything, mock.AnythingOfType("*entity.Post")).
		Run(func(_ context.Context, post *entity.Post) { post.ID = uuid.New() }).
		Return(nil)

	post, err := f.service.CreatePost(context.Background(), usecase.CreatePostInput{
		AuthorID: authorID,
		Title:    "  Hello  ",
		Body:     "First post",
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, post.ID)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, authorID, post.AuthorID)
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	f := createTestPostService(t)

	_, err := f.service.CreatePost(context.Background(), usecase.CreatePostInput{AuthorID: uuid.New(), Title: " ", Body: "x"})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))

	_, err = f.service.CreatePost(context.Background(), usecase.CreatePostInput{AuthorID: uuid.New(), Title: "t", Body: ""})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
}

func TestPostService_ListPosts_ClampsPaging(t *testing.T) {
	tests := []struct {
		name       string
		in         usecase.ListPostsInput
		wantLimit  int
		wantOffset int
	}{
		{name: "default limit", in: usecase.ListPostsInput{}, wantLimit: 10},
		{name: "clamped to max", in: usecase.ListPostsInput{Limit: 500, Offset: 20}, wantLimit: 50, wantOffset: 20},
		{name: "negative offset", in: usecase.ListPostsInput{Limit: 5, Offset: -3}, wantLimit: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := createTestPostService(t)
			f.postRepo.EXPECT().
				List(mock.Anything, repository.PostListOptions{Limit: tt.wantLimit, Offset: tt.wantOffset}).
				Return([]*entity.Post{{ID: uuid.New()}}, int64(42), nil)

			out, err := f.service.ListPosts(context.Background(), tt.in)

			require.NoError(t, err)
			assert.Len(t, out.Posts, 1)
			assert.Equal(t, int64(42), out.Total)
			assert.Equal(t, tt.wantLimit, out.Limit)
			assert.Equal(t, tt.wantOffset, out.Offset)
		})
	}
}

func TestPostService_UpdatePost_AuthorOnly(t *testing.T) {
	authorID := uuid.New()
	existing := func() *entity.Post {
		return &entity.Post{ID: uuid.New(), AuthorID: authorID, Title: "Old", Body: "Body"}
	}

	t.Run("author edits", func(t *testing.T) {
		f := createTestPostService(t)
		post := existing()
		f.expectTransaction(t)
		f.txPosts.EXPECT().FindByID(mock.Anything, post.ID).Return(post, nil)
		f.txPosts.EXPECT().Update(mock.Anything, post).Return(nil)

		title := "New"
		got, err := f.service.UpdatePost(context.Background(), usecase.UpdatePostInput{PostID: post.ID, ActorID: authorID, Title: &title})

		require.NoError(t, err)
		assert.Equal(t, "New", got.Title)
		assert.Equal(t, "Body", got.Body)
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := createTestPostService(t)
		post := existing()
		f.expectTransaction(t)
		f.txPosts.EXPECT().FindByID(mock.Anything, post.ID).Return(post, nil)

		title := "Hijacked"
		_, err := f.service.UpdatePost(context.Background(), usecase.UpdatePostInput{PostID: post.ID, ActorID: uuid.New(), Title: &title})

		assert.True(t, errors.Is(err, domainerrors.ErrForbidden))
	})
}

func TestPostService_DeletePost(t *testing.T) {
	authorID := uuid.New()

	t.Run("author deletes", func(t *testing.T) {
		f := createTestPostService(t)
		post := &entity.Post{ID: uuid.New(), AuthorID: authorID}
		f.expectTransaction(t)
		f.txPosts.EXPECT().FindByID(mock.Anything, post.ID).Return(post, nil)
		f.txPosts.EXPECT().Delete(mock.Anything, post.ID).Return(nil)

		require.NoError(t, f.service.DeletePost(context.Background(), post.ID, authorID))
	})

	t.Run("missing post", func(t *testing.T) {
		f := createTestPostService(t)
		id := uuid.New()
		f.expectTransaction(t)
		f.txPosts.EXPECT().FindByID(mock.Anything, id).Return(nil, errors.WithStack(domainerrors.ErrPostNotFound))

		err := f.service.DeletePost(context.Background(), id, authorID)

		assert.True(t, errors.Is(err, domainerrors.ErrPostNotFound))
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		f := createTestPostService(t)
		post := &entity.Post{ID: uuid.New(), AuthorID: authorID}
		f.expectTransaction(t)
		f.txPosts.EXPECT().FindByID(mock.Anything, post.ID).Return(post, nil)

		err := f.service.DeletePost(context.Background(), post.ID, uuid.New())

		assert.True(t, errors.Is(err, domainerrors.ErrForbidden))
	})
}
