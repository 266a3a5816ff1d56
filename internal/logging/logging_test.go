package logging_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/identity-api/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter("prod", &buf)

	e := echo.New()
	e.Use(logging.RequestLogger(log))
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/healthz?accessToken=secret", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "GET", line["method"])
	require.Equal(t, "/healthz", line["path"])
	require.EqualValues(t, 200, line["status"])
	require.Equal(t, "prod", line["env"])
	require.NotContains(t, buf.String(), "secret")
}

func TestNewWithWriter_DevIsConsole(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter("dev", &buf)
	log.Debug().Msg("hello")
	require.Contains(t, buf.String(), "hello")
	require.False(t, json.Valid(buf.Bytes()))
}
