package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-api/internal/token"
)

// JWTAuth validates the Bearer access token with signer (signature,
// algorithm, expiry and, when configured, issuer and audience) and stores
// the principal in the context.  Any failure is a bare 401.
func JWTAuth(signer *token.Signer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return unauthorized(c)
			}
			p, err := signer.Verify(strings.TrimSpace(raw))
			if err != nil {
				c.Logger().Debugf("jwt: %v", err)
				return unauthorized(c)
			}
			c.Set(ctxPrincipal, p)
			c.Set(ctxEmail, p.Name())
			return next(c)
		}
	}
}

func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return c.NoContent(http.StatusUnauthorized)
}
