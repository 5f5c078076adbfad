// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"

	"postboard/internal/delivery/api/cookie"
	"postboard/internal/delivery/api/response"
	"postboard/internal/delivery/api/validator"
	domainerrors "postboard/internal/domain/errors"
	"postboard/internal/errors"
	"postboard/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC  usecase.AuthUsecase
	Cookies *cookie.Manager
	Logger  *slog.Logger
}

// AuthHandler serves the session endpoints.
type AuthHandler struct {
	authUC  usecase.AuthUsecase
	cookies *cookie.Manager
	logger  *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC:  params.AuthUC,
		cookies: params.Cookies,
		logger:  params.Logger,
	}
}

// SignUpRequest represents the request body for creating an account
type SignUpRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

// SignInRequest represents the request body for signing in
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the optional JSON body of refresh and logout, used when the cookie is absent.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SignUp handles account registration.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid sign-up input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequestWithDetails(c, "VALIDATION_FAILED", "Request validation failed", validator.Details(err))
	}

	out, err := h.authUC.SignUp(c.Request().Context(), usecase.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return h.respondWithSession(c, http.StatusCreated, out)
}

// SignIn handles credential login.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_INPUT", "Invalid sign-in input")
	}
	if err := c.Validate(&req); err != nil {
		return response.BadRequestWithDetails(c, "VALIDATION_FAILED", "Request validation failed", validator.Details(err))
	}

	out, err := h.authUC.SignIn(c.Request().Context(), usecase.SignInInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return h.respondWithSession(c, http.StatusOK, out)
}

// Refresh rotates the refresh token. The CSRF guard has already run.
func (h *AuthHandler) Refresh(c echo.Context) error {
	token := h.presentedRefreshToken(c)
	if token == "" {
		return domainerrors.ErrRefreshTokenInvalid.WrapMessage("no refresh token presented")
	}

	out, err := h.authUC.Refresh(c.Request().Context(), token)
	if err != nil {
		return errors.WithStack(err)
	}

	return h.respondWithSession(c, http.StatusOK, out)
}

// Logout revokes the presented refresh token and clears the session cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	token := h.presentedRefreshToken(c)
	h.cookies.Clear(c)

	if err := h.authUC.Logout(c.Request().Context(), token); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, map[string]bool{"success": true})
}

// presentedRefreshToken prefers the cookie and falls back to the JSON body.
func (h *AuthHandler) presentedRefreshToken(c echo.Context) string {
	if token := h.cookies.RefreshToken(c); token != "" {
		return token
	}

	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return ""
	}

	return req.RefreshToken
}

func (h *AuthHandler) respondWithSession(c echo.Context, status int, out *usecase.AuthOutput) error {
	h.cookies.SetSession(c, out.Tokens)

	return response.Success(c, status, AuthResponse{
		User:                 toUserResponse(out.User),
		AccessToken:          out.Tokens.AccessToken,
		AccessTokenExpiresAt: out.Tokens.AccessTokenExpiresAt,
		CSRFToken:            out.Tokens.CSRFToken,
	})
}
