package context

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// KeyUserID is the key for storing the authenticated user id in echo.Context.
	KeyUserID ContextKey = "user_id"

	// KeyUserEmail is the key for storing the authenticated user email in echo.Context.
	KeyUserEmail ContextKey = "user_email"
)

// SetUser records the authenticated principal on the echo.Context.
func SetUser(c echo.Context, userID uuid.UUID, email string) {
	c.Set(string(KeyUserID), userID)
	c.Set(string(KeyUserEmail), email)
}

// GetUserID returns the authenticated user id set by the bearer guard.
func GetUserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(string(KeyUserID)).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}

	return id, true
}
