package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/identity-api/internal/config"
	"github.com/iliyamo/identity-api/internal/middleware"
	"github.com/iliyamo/identity-api/internal/model"
	"github.com/iliyamo/identity-api/internal/token"
)

const secretStr = "0123456789abcdef0123456789abcdef"

func newSigner(t *testing.T, now func() time.Time) *token.Signer {
	t.Helper()
	s, err := token.NewSigner(token.Config{Secret: secretStr, Now: now})
	require.NoError(t, err)
	return s
}

func bearerFor(t *testing.T, s *token.Signer, roles ...string) string {
	t.Helper()
	cs, err := token.BuildClaims(&model.User{Email: "user@gmail.com", Roles: roles})
	require.NoError(t, err)
	at, err := s.Sign(cs)
	require.NoError(t, err)
	return "Bearer " + at.Token
}

func newProtected(t *testing.T, s *token.Signer, roles ...string) *echo.Echo {
	t.Helper()
	e := echo.New()
	mws := []echo.MiddlewareFunc{middleware.JWTAuth(s)}
	if len(roles) > 0 {
		mws = append(mws, middleware.RequireRole(roles...))
	}
	e.GET("/protected", func(c echo.Context) error {
		return c.String(http.StatusOK, middleware.Email(c))
	}, mws...)
	return e
}

func do(e *echo.Echo, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	s := newSigner(t, nil)
	e := newProtected(t, s)

	rec := do(e, bearerFor(t, s, "User"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user@gmail.com", rec.Body.String())

	for name, auth := range map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic dXNlcjpwYXNz",
		"empty bearer":   "Bearer ",
		"garbage":        "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(e, auth)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
			require.Empty(t, rec.Body.String())
		})
	}

	t.Run("expired", func(t *testing.T) {
		past := newSigner(t, func() time.Time { return time.Now().Add(-2 * time.Hour) })
		require.Equal(t, http.StatusUnauthorized, do(e, bearerFor(t, past, "User")).Code)
	})

	t.Run("other secret", func(t *testing.T) {
		other, err := token.NewSigner(token.Config{Secret: "fedcba9876543210fedcba9876543210"})
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, do(e, bearerFor(t, other, "User")).Code)
	})
}

func TestRequireRole(t *testing.T) {
	s := newSigner(t, nil)
	e := newProtected(t, s, model.RoleAdmin)

	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{"admin", []string{"Admin"}, http.StatusOK},
		{"admin among several", []string{"Admin", "User"}, http.StatusOK},
		{"user only", []string{"User"}, http.StatusForbidden},
		{"no roles", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, do(e, bearerFor(t, s, tt.roles...)).Code)
		})
	}
}

func TestRequireRole_WithoutPrincipal(t *testing.T) {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		middleware.RequireRole(model.RoleAdmin))
	require.Equal(t, http.StatusUnauthorized, do(e, "").Code)
}

func newLimited(t *testing.T, rdb *redis.Client, cfg config.RateLimitConfig) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.POST("/api/account/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		middleware.NewTokenBucket(cfg, rdb, zerolog.Nop()))
	return e
}

func postFrom(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/account/login", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:test",
	}
	e := newLimited(t, rdb, cfg)

	first := postFrom(e, "10.0.0.1")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusOK, postFrom(e, "10.0.0.1").Code)

	blocked := postFrom(e, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.NotEmpty(t, blocked.Header().Get("Retry-After"))
	require.NotEqual(t, "0", blocked.Header().Get("Retry-After"))

	// Buckets are per client address.
	require.Equal(t, http.StatusOK, postFrom(e, "10.0.0.2").Code)

	require.True(t, mr.Exists("rl:test:ip:10.0.0.1:route:POST /api/account/login"))
}

func TestTokenBucket_PassThrough(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour}

	t.Run("no redis", func(t *testing.T) {
		e := newLimited(t, nil, cfg)
		for i := 0; i < 3; i++ {
			require.Equal(t, http.StatusOK, postFrom(e, "10.0.0.1").Code)
		}
	})

	t.Run("redis unavailable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		t.Cleanup(func() { _ = rdb.Close() })
		mr.Close()

		e := newLimited(t, rdb, cfg)
		for i := 0; i < 3; i++ {
			require.Equal(t, http.StatusOK, postFrom(e, "10.0.0.1").Code)
		}
	})
}
