package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-api/internal/token"
)

// Context keys set by JWTAuth.
const (
	ctxPrincipal = "principal"
	ctxEmail     = "email"
)

// Principal returns the verified principal stored by JWTAuth, or nil on
// routes that are not behind it.
func Principal(c echo.Context) *token.Principal {
	p, _ := c.Get(ctxPrincipal).(*token.Principal)
	return p
}

// Email returns the authenticated user's email, or "" when anonymous.
func Email(c echo.Context) string {
	s, _ := c.Get(ctxEmail).(string)
	return s
}

// subject identifies the caller for rate limiting.
func subject(c echo.Context) string {
	if s := Email(c); s != "" {
		return s
	}
	return "anon"
}
