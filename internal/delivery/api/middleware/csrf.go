package middleware

import (
	"crypto/subtle"
	"log/slog"

	"postboard/internal/delivery/api/cookie"
	deliverycontext "postboard/internal/delivery/context"
	domainerrors "postboard/internal/domain/errors"

	"github.com/labstack/echo/v4"
)

// CSRFMiddleware enforces the double-submit check: the CSRF header must equal
// the CSRF cookie minted with the session.
type CSRFMiddleware struct {
	cookies *cookie.Manager
	logger  *slog.Logger
}

// NewCSRFMiddleware is the constructor for CSRFMiddleware.
func NewCSRFMiddleware(cookies *cookie.Manager, logger *slog.Logger) *CSRFMiddleware {
	return &CSRFMiddleware{cookies: cookies, logger: logger}
}

// Protect rejects the request before the handler runs unless header and cookie match.
func (m *CSRFMiddleware) Protect(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(m.cookies.CSRFHeader())
		cookieValue := m.cookies.CSRFToken(c)

		if header == "" || cookieValue == "" ||
			subtle.ConstantTimeCompare([]byte(header), []byte(cookieValue)) != 1 {
			deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger).
				Info("CSRF check failed",
					slog.Bool("header_present", header != ""),
					slog.Bool("cookie_present", cookieValue != ""),
				)

			return domainerrors.ErrCSRFTokenInvalid.WrapMessage("csrf double-submit mismatch")
		}

		return next(c)
	}
}
