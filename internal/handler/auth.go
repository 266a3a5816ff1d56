package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/identity-api/internal/middleware"
	"github.com/iliyamo/identity-api/internal/repository"
	"github.com/iliyamo/identity-api/internal/service"
	"github.com/iliyamo/identity-api/internal/token"
)

const requestTimeout = 5 * time.Second

// AuthHandler exposes the account endpoints.
type AuthHandler struct {
	Auth *service.AuthService
	Log  zerolog.Logger
}

func NewAuthHandler(auth *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
type meResp struct {
	UserName    string   `json:"userName"`
	DisplayName string   `json:"displayName"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
}

// Register creates a user without roles.  Validation failures are
// answered with 400 and a list of {code, description}.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.Auth.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// Login returns {accessToken, refreshToken} or 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.NoContent(http.StatusUnauthorized)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh exchanges an access token, expired or not, and the current
// refresh token for a new pair.  The old refresh token stops working.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.AccessToken == "" || req.RefreshToken == "" {
		return c.NoContent(http.StatusUnauthorized)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, req.AccessToken, req.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout clears the caller's refresh token.  Requires JWTAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
	email := middleware.Email(c)
	if email == "" {
		return c.NoContent(http.StatusUnauthorized)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, email); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// Me echoes the verified claims of the caller.  Requires JWTAuth.
func (h *AuthHandler) Me(c echo.Context) error {
	p := middleware.Principal(c)
	if p == nil {
		return c.NoContent(http.StatusUnauthorized)
	}
	roles := p.Claims.Roles()
	if roles == nil {
		roles = []string{}
	}
	display, _ := p.Claims.Get(token.ClaimNameIdentifier)
	return c.JSON(http.StatusOK, meResp{
		UserName:    p.Name(),
		DisplayName: display,
		Email:       p.Claims.Email(),
		Roles:       roles,
	})
}

// fail maps service errors to responses.  Authentication failures carry
// no body so clients cannot tell the causes apart.
func (h *AuthHandler) fail(c echo.Context, err error) error {
	var verrs repository.ValidationErrors
	switch {
	case service.IsUnauthorized(err):
		return c.NoContent(http.StatusUnauthorized)
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, verrs)
	case errors.Is(err, context.DeadlineExceeded):
		h.Log.Warn().Err(err).Str("path", c.Path()).Msg("request timed out")
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "timeout"})
	default:
		h.Log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
