package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goodnews/config"
	"goodnews/guard"
	apperrors "goodnews/utils/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newContext(e *echo.Echo, method, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.SecureHTTPResponse {
	t.Helper()
	var resp apperrors.SecureHTTPResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestErrorHandler_AppContextError(t *testing.T) {
	e := echo.New()
	handler := CustomHTTPErrorHandler(testLogger())
	c, rec := newContext(e, http.MethodGet, "/")

	handler(apperrors.NewNotFoundError("article not found", "handler", "articles", "Get", nil), c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, apperrors.CodeNotFound, resp.Error.Code)
	assert.Equal(t, "article not found", resp.Error.Message)
}

func TestErrorHandler_WrappedAppContextError(t *testing.T) {
	e := echo.New()
	handler := CustomHTTPErrorHandler(testLogger())
	c, rec := newContext(e, http.MethodGet, "/")

	inner := apperrors.NewDatabaseError("query failed", "store", "store", "list", errors.New("boom"), nil)
	handler(fmt.Errorf("operation failed after 3 attempts: %w", inner), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, apperrors.CodeDatabase, resp.Error.Code)
	// Internal detail never reaches the client
	assert.NotContains(t, resp.Error.Message, "query failed")
	assert.NotContains(t, resp.Error.Message, "boom")
}

func TestErrorHandler_RateLimitSetsRetryAfter(t *testing.T) {
	e := echo.New()
	handler := CustomHTTPErrorHandler(testLogger())
	c, rec := newContext(e, http.MethodPost, "/")

	handler(apperrors.NewRateLimitError("throttled", "provider", "newsdata", "fetch", 30, nil), c)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	e := echo.New()
	handler := CustomHTTPErrorHandler(testLogger())
	c, rec := newContext(e, http.MethodGet, "/")

	handler(echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large"), c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "HTTP_ERROR", resp.Error.Code)
	assert.Equal(t, "request body too large", resp.Error.Message)
}

func TestErrorHandler_UnknownErrorIsOpaque500(t *testing.T) {
	e := echo.New()
	handler := CustomHTTPErrorHandler(testLogger())
	c, rec := newContext(e, http.MethodGet, "/")

	handler(errors.New("pq: column does not exist"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "pq:")
}

func authConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecret: "test-secret", Issuer: "goodnews"}
}

func signToken(t *testing.T, secret, issuer, subject string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iss": issuer,
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func runAuth(t *testing.T, mw echo.MiddlewareFunc, token string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return c, handler(c)
}

func TestRequireAuth_ValidToken(t *testing.T) {
	auth := NewAuthenticator(authConfig())
	token := signToken(t, "test-secret", "goodnews", "user-42", time.Hour)

	c, err := runAuth(t, auth.RequireAuth(), token)

	require.NoError(t, err)
	assert.Equal(t, "user-42", UserID(c))
}

func TestRequireAuth_Failures(t *testing.T) {
	tests := map[string]string{
		"missing token": "",
		"wrong secret":  signToken(t, "other-secret", "goodnews", "user-42", time.Hour),
		"expired token": signToken(t, "test-secret", "goodnews", "user-42", -time.Hour),
		"wrong issuer":  signToken(t, "test-secret", "someone-else", "user-42", time.Hour),
		"empty subject": signToken(t, "test-secret", "goodnews", "", time.Hour),
	}

	auth := NewAuthenticator(authConfig())

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := runAuth(t, auth.RequireAuth(), token)

			var appErr *apperrors.AppContextError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.CodeUnauthorized, appErr.Code)
		})
	}
}

func TestOptionalAuth_AnonymousPasses(t *testing.T) {
	auth := NewAuthenticator(authConfig())

	c, err := runAuth(t, auth.OptionalAuth(), "")

	require.NoError(t, err)
	assert.Empty(t, UserID(c))
}

func TestOptionalAuth_InvalidTokenStillRejected(t *testing.T) {
	auth := NewAuthenticator(authConfig())
	token := signToken(t, "other-secret", "goodnews", "user-42", time.Hour)

	_, err := runAuth(t, auth.OptionalAuth(), token)

	var appErr *apperrors.AppContextError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeUnauthorized, appErr.Code)
}

func TestOptionalAuth_ValidTokenResolvesUser(t *testing.T) {
	auth := NewAuthenticator(authConfig())
	token := signToken(t, "test-secret", "goodnews", "user-7", time.Hour)

	c, err := runAuth(t, auth.OptionalAuth(), token)

	require.NoError(t, err)
	assert.Equal(t, "user-7", UserID(c))
}

func newGuard(maxConcurrent int) *guard.ConcurrencyGuard {
	return guard.NewConcurrencyGuard(config.GuardConfig{
		Window:        30 * time.Second,
		MaxConcurrent: maxConcurrent,
		SweepInterval: time.Minute,
	}, testLogger())
}

func TestGuardMiddleware_DeniesOverLimit(t *testing.T) {
	mw := GuardMiddleware(newGuard(2))
	e := echo.New()

	run := func(userID string) error {
		req := httptest.NewRequest(http.MethodPost, "/articles/abc/view", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.Set(UserIDKey, userID)
		handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		return handler(c)
	}

	require.NoError(t, run("user-1"))
	require.NoError(t, run("user-1"))

	err := run("user-1")
	var appErr *apperrors.AppContextError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeRateLimit, appErr.Code)

	// A different caller is unaffected
	assert.NoError(t, run("user-2"))
}

func TestGuardMiddleware_AnonymousAlwaysAdmitted(t *testing.T) {
	mw := GuardMiddleware(newGuard(1))
	e := echo.New()

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/articles/abc/view", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		assert.NoError(t, handler(c))
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	mw := RequestIDMiddleware()

	t.Run("generates when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		require.NoError(t, handler(c))
		assert.Len(t, rec.Header().Get(echo.HeaderXRequestID), 16)
	})

	t.Run("echoes client value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRequestID, "client-supplied-id")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		require.NoError(t, handler(c))
		assert.Equal(t, "client-supplied-id", rec.Header().Get(echo.HeaderXRequestID))
	})
}
