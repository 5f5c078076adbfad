package handler

import (
	"net/http"

	"postboard/internal/delivery/api/middleware"
	"postboard/internal/delivery/api/response"
	"postboard/internal/delivery/api/validator"
	"postboard/internal/errors"
	"postboard/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// PostHandlerParams holds dependencies for PostHandler, injected by Fx.
type PostHandlerParams struct {
	fx.In

	PostUC usecase.PostUsecase
}

// PostHandler serves post CRUD.
type PostHandler struct {
	postUC usecase.PostUsecase
}

// NewPostHandler is the constructor for PostHandler
func NewPostHandler(params PostHandlerParams) *PostHandler {
	return &PostHandler{postUC: params.PostUC}
}

// CreatePostRequest represents the request body for publishing a post
type CreatePostRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"required,max=20000"`
}

// UpdatePostRequest represents the request body for editing a post; omitted fields are kept
type UpdatePostRequest struct {
	Title *string `json:"title" validate:"omitnil,min=1,max=200"`
	Body  *string `json:"body" validate:"omitnil,min=1,max=20000"`
}

// ListPostsQuery holds the paging parameters of GET /posts
type ListPostsQuery struct {
	Limit    int    `query:"limit" validate:"gte=0"`
	Offset   int    `query:"offset" validate:"gte=0"`
	AuthorID string `query:"authorId" validate:"omitempty,uuid"`
}

// CreatePost publishes a post as the authenticated user.
func (h *PostHandler) CreatePost(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	var req CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid post input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequestWithDetails(c, "VALIDATION_FAILED", "Request validation failed", validator.Details(err))
	}

	post, err := h.postUC.CreatePost(c.Request().Context(), usecase.CreatePostInput{
		AuthorID: userID,
		Title:    req.Title,
		Body:     req.Body,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusCreated, toPostResponse(post))
}

// ListPosts returns a page of posts, newest first.
func (h *PostHandler) ListPosts(c echo.Context) error {
	var q ListPostsQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid paging parameters")
	}
	if err := c.Validate(&q); err != nil {
		return response.BadRequestWithDetails(c, "VALIDATION_FAILED", "Request validation failed", validator.Details(err))
	}

	input := usecase.ListPostsInput{Limit: q.Limit, Offset: q.Offset}
	if q.AuthorID != "" {
		authorID := uuid.MustParse(q.AuthorID)
		input.AuthorID = &authorID
	}

	out, err := h.postUC.ListPosts(c.Request().Context(), input)
	if err != nil {
		return errors.WithStack(err)
	}

	items := make([]*PostResponse, 0, len(out.Posts))
	for _, post := range out.Posts {
		items = append(items, toPostResponse(post))
	}

	return response.Success(c, http.StatusOK, response.Page[*PostResponse]{
		Items: items,
		Page:  response.PageMeta{Total: out.Total, Limit: out.Limit, Offset: out.Offset},
	})
}

// GetPost returns one post.
func (h *PostHandler) GetPost(c echo.Context) error {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid post ID format")
	}

	post, err := h.postUC.GetPost(c.Request().Context(), postID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toPostResponse(post))
}

// UpdatePost edits a post owned by the authenticated user.
func (h *PostHandler) UpdatePost(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid post ID format")
	}

	var req UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid post input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequestWithDetails(c, "VALIDATION_FAILED", "Request validation failed", validator.Details(err))
	}

	post, err := h.postUC.UpdatePost(c.Request().Context(), usecase.UpdatePostInput{
		PostID:  postID,
		ActorID: userID,
		Title:   req.Title,
		Body:    req.Body,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, toPostResponse(post))
}

// DeletePost removes a post owned by the authenticated user.
func (h *PostHandler) DeletePost(c echo.Context) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "INVALID_TOKEN", "Invalid user ID in token")
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return response.BadRequest(c, "INVALID_INPUT", "Invalid post ID format")
	}

	if err := h.postUC.DeletePost(c.Request().Context(), postID, userID); err != nil {
		return errors.WithStack(err)
	}

	return c.NoContent(http.StatusNoContent)
}
