// Package auth provides HS256 JWT authentication for the gateway API.
// Provider webhooks and the health endpoint are exempted by the server's path
// skipper; every other route requires a valid token.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/omnigatehq/omnigate/internal/config"
)

// Claims is the token payload carried by API callers.
type Claims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// Middleware builds the echo JWT middleware with the given skipper.
func Middleware(cfg config.AuthConfig, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		Skipper:    skipper,
		SigningKey: []byte(cfg.JWTSecret),
		NewClaimsFunc: func(echo.Context) jwt.Claims {
			return &Claims{}
		},
	})
}

// GenerateToken issues a signed token for a caller subject.
func GenerateToken(cfg config.AuthConfig, subject string) (string, error) {
	expiresIn, err := time.ParseDuration(cfg.JWTExpiresIn)
	if err != nil {
		return "", fmt.Errorf("parse jwt_expires_in: %w", err)
	}
	now := time.Now()
	claims := &Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// CallerSubject extracts the authenticated subject from the request context.
func CallerSubject(c echo.Context) string {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return ""
	}
	return claims.Subject
}
