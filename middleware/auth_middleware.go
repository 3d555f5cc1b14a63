// ABOUTME: JWT bearer authentication middleware with required and optional modes
// ABOUTME: Validates HMAC-signed tokens and puts the subject user ID on the echo context
package middleware

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"goodnews/config"
	apperrors "goodnews/utils/errors"
)

// UserIDKey is the echo context key holding the authenticated user ID.
// Empty string means the request is anonymous.
const UserIDKey = "user_id"

// Authenticator validates bearer tokens signed with the shared HMAC secret.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// RequireAuth rejects requests without a valid bearer token.
func (a *Authenticator) RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := a.authenticate(c)
			if err != nil {
				return err
			}
			if userID == "" {
				return apperrors.NewUnauthorizedError(
					"missing bearer token", "handler", "auth", "RequireAuth")
			}
			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// OptionalAuth resolves the user when a valid token is present and treats the
// request as anonymous otherwise. An invalid token is still rejected: absent
// and broken credentials are different cases.
func (a *Authenticator) OptionalAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := a.authenticate(c)
			if err != nil {
				return err
			}
			c.Set(UserIDKey, userID)
			return next(c)
		}
	}
}

// authenticate returns the token subject, or "" when no token was sent.
func (a *Authenticator) authenticate(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", nil
	}

	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", a.unauthorized("authorization header is not a bearer token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", a.unauthorized("invalid or expired token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", a.unauthorized("token has no subject")
	}

	return subject, nil
}

func (a *Authenticator) unauthorized(message string) error {
	return apperrors.NewUnauthorizedError(message, "handler", "auth", "authenticate")
}

// UserID returns the authenticated user ID from the echo context, empty for
// anonymous requests.
func UserID(c echo.Context) string {
	if id, ok := c.Get(UserIDKey).(string); ok {
		return id
	}
	return ""
}
