package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustbridge/auth/testutils"
)

func TestNew(t *testing.T) {
	cfg := testutils.GetTestConfig()
	srv := New(cfg, nil)

	require.NotNil(t, srv)
	assert.NotNil(t, srv.Echo())
	assert.Same(t, cfg, srv.cfg)
}

func TestRouting(t *testing.T) {
	srv := New(testutils.GetTestConfig(), nil)
	srv.Echo().GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestGroup(t *testing.T) {
	srv := New(testutils.GetTestConfig(), nil)
	group := srv.Group("/api")
	require.NotNil(t, group)

	group.GET("/ping", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
