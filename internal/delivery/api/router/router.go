// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"postboard/internal/delivery/api/middleware"
	"postboard/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	PostHandler    *handler.PostHandler
	HealthHandler  *handler.HealthHandler
	AuthMiddleware *middleware.AuthMiddleware
	CSRFMiddleware *middleware.CSRFMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	userHandler    *handler.UserHandler
	postHandler    *handler.PostHandler
	healthHandler  *handler.HealthHandler
	authMiddleware *middleware.AuthMiddleware
	csrfMiddleware *middleware.CSRFMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		userHandler:    params.UserHandler,
		postHandler:    params.PostHandler,
		healthHandler:  params.HealthHandler,
		authMiddleware: params.AuthMiddleware,
		csrfMiddleware: params.CSRFMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", r.healthHandler.Live)
	e.GET("/health/ready", r.healthHandler.Ready)

	authGroup := e.Group("/auth")
	{
		authGroup.POST("/signup", r.authHandler.SignUp)
		authGroup.POST("/signin", r.authHandler.SignIn)
		authGroup.POST("/refresh", r.authHandler.Refresh, r.csrfMiddleware.Protect)
		authGroup.POST("/logout", r.authHandler.Logout)
	}

	userGroup := e.Group("/users")
	userGroup.Use(r.authMiddleware.Authenticate)
	{
		userGroup.GET("/me", r.userHandler.GetMe)
		userGroup.PATCH("/me", r.userHandler.UpdateMe)
	}

	postGroup := e.Group("/posts")
	{
		postGroup.GET("", r.postHandler.ListPosts)
		postGroup.GET("/:id", r.postHandler.GetPost)
		postGroup.POST("", r.postHandler.CreatePost, r.authMiddleware.Authenticate)
		postGroup.PATCH("/:id", r.postHandler.UpdatePost, r.authMiddleware.Authenticate)
		postGroup.DELETE("/:id", r.postHandler.DeletePost, r.authMiddleware.Authenticate)
	}
}
