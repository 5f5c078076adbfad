// Package cookie writes and reads the session cookies: the HTTP-only refresh
// cookie and the script-readable CSRF cookie that mirrors it.
package cookie

import (
	"net/http"
	"strings"
	"time"

	"postboard/config"
	"postboard/internal/domain/entity"

	"github.com/labstack/echo/v4"
)

// Manager builds session cookies from configuration.
type Manager struct {
	refreshName string
	csrfName    string
	csrfHeader  string
	path        string
	domain      string
	secure      bool
	sameSite    http.SameSite
	maxAge      int
}

// NewManager is the constructor for Manager. cfg must have defaults applied.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		refreshName: cfg.Cookie.RefreshName,
		csrfName:    cfg.Cookie.CSRFName,
		csrfHeader:  cfg.Cookie.CSRFHeader,
		path:        cfg.Cookie.Path,
		domain:      cfg.Cookie.Domain,
		secure:      cfg.Cookie.Secure || cfg.IsProduction(),
		sameSite:    parseSameSite(cfg.Cookie.SameSite),
		maxAge:      int(cfg.Auth.RefreshTokenTTL / time.Second),
	}
}

func parseSameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// CSRFHeader is the request header that must echo the CSRF cookie.
func (m *Manager) CSRFHeader() string {
	return m.csrfHeader
}

// SetSession writes both cookies for a fresh issuance. They share the refresh expiry.
func (m *Manager) SetSession(c echo.Context, tokens *entity.GeneratedAuthTokens) {
	c.SetCookie(m.build(m.refreshName, tokens.RefreshToken, true, m.maxAge, tokens.RefreshTokenExpiresAt))
	c.SetCookie(m.build(m.csrfName, tokens.CSRFToken, false, m.maxAge, tokens.RefreshTokenExpiresAt))
}

// Clear expires both cookies on the client.
func (m *Manager) Clear(c echo.Context) {
	c.SetCookie(m.build(m.refreshName, "", true, -1, time.Unix(0, 0)))
	c.SetCookie(m.build(m.csrfName, "", false, -1, time.Unix(0, 0)))
}

// RefreshToken returns the refresh cookie value, or "" when absent.
func (m *Manager) RefreshToken(c echo.Context) string {
	return m.value(c, m.refreshName)
}

// CSRFToken returns the CSRF cookie value, or "" when absent.
func (m *Manager) CSRFToken(c echo.Context) string {
	return m.value(c, m.csrfName)
}

func (m *Manager) value(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}

	return ck.Value
}

func (m *Manager) build(name, value string, httpOnly bool, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.path,
		Domain:   m.domain,
		MaxAge:   maxAge,
		Expires:  expires.UTC(),
		Secure:   m.secure,
		HttpOnly: httpOnly,
		SameSite: m.sameSite,
	}
}
