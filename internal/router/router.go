// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/identity-api/internal/handler"
	"github.com/iliyamo/identity-api/internal/middleware"
	"github.com/iliyamo/identity-api/internal/model"
	"github.com/iliyamo/identity-api/internal/token"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the account endpoints under /api/account.  limit
// guards the credential-consuming endpoints (login and refresh).
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, signer *token.Signer, limit echo.MiddlewareFunc) {
	g := e.Group("/api/account")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, limit)
	g.POST("/refreshToken", a.Refresh, limit)

	jwt := middleware.JWTAuth(signer)
	g.POST("/logout", a.Logout, jwt)
	g.GET("/me", a.Me, jwt)
}

// RegisterAPI registers the protected sample API.
func RegisterAPI(e *echo.Echo, signer *token.Signer) {
	api := e.Group("/api", middleware.JWTAuth(signer))
	api.GET("/weatherforecast", handler.Forecast, middleware.RequireRole(model.RoleAdmin))
}
