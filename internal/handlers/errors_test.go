package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/hospital_portal/internal/service"
)

func render(t *testing.T, err error, dev bool) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ErrorHandler(dev)(err, e.NewContext(req, rec))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestErrorHandlerKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"validation", service.Validation("Missing required fields: email", "email"), http.StatusBadRequest, "Missing required fields: email"},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "Insufficient permissions"},
		{"not found", service.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{"echo", echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests"), http.StatusTooManyRequests, "Too many requests"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := render(t, tt.err, false)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.msg, body["message"])
			assert.NotContains(t, body, "error")
		})
	}
}

func TestErrorHandlerFields(t *testing.T) {
	_, body := render(t, service.Validation("Missing required fields: email, phone", "email", "phone"), false)
	assert.Equal(t, []any{"email", "phone"}, body["errors"])
}

func TestErrorHandlerDevDetail(t *testing.T) {
	err := service.Internal(errors.New("connection refused"))

	_, prod := render(t, err, false)
	assert.NotContains(t, prod, "error")

	code, dev := render(t, err, true)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", dev["message"])
	assert.Equal(t, "connection refused", dev["error"])
}

func TestCookies(t *testing.T) {
	cc := CookieConfig{Secure: true, MaxAge: 0}
	set := cc.refresh("abc")
	assert.Equal(t, RefreshCookieName, set.Name)
	assert.True(t, set.HttpOnly)
	assert.True(t, set.Secure)
	assert.Equal(t, http.SameSiteStrictMode, set.SameSite)

	cleared := cc.clearRefresh()
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)
}
