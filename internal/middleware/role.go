package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole lets the request through when the principal holds at least
// one of roles.  The role claim is the comma-joined list written by the
// token signer.  Must run after JWTAuth; without a principal it answers
// 401, with a principal lacking the role 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := Principal(c)
			if p == nil {
				return unauthorized(c)
			}
			for _, r := range p.Claims.Roles() {
				if allowed[r] {
					return next(c)
				}
			}
			return c.NoContent(http.StatusForbidden)
		}
	}
}
