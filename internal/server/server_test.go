package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/memohai/msgbridge/internal/auth"
	"github.com/memohai/msgbridge/internal/logger"
)

type routes struct{}

func (routes) Register(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	e.GET("/admin/channels", func(c echo.Context) error { return c.String(http.StatusOK, "admin") })
}

func get(s *Server, path, token string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec.Code
}

func TestAdminRoutesRequireToken(t *testing.T) {
	t.Parallel()
	s := NewServer(logger.Discard(), "", "secret", routes{})
	if code := get(s, "/ping", ""); code != http.StatusOK {
		t.Fatalf("/ping status = %d", code)
	}
	if code := get(s, "/admin/channels", ""); code != http.StatusUnauthorized {
		t.Fatalf("/admin without token status = %d", code)
	}
	token, _, err := auth.GenerateToken("ops", "secret", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if code := get(s, "/admin/channels", token); code != http.StatusOK {
		t.Fatalf("/admin with token status = %d", code)
	}
}

func TestNilHandlersAreSkipped(t *testing.T) {
	t.Parallel()
	s := NewServer(logger.Discard(), "", "", nil, routes{})
	if code := get(s, "/admin/channels", ""); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
}
