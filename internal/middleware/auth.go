// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds echo middleware shared by the HTTP routes.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/go-auth-service/internal/auth"
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"github.com/labstack/echo/v4"
)

// AccessTokenVerifier resolves an access token to a user id.
type AccessTokenVerifier interface {
	VerifyAccessToken(value string) (int64, error)
}

// RequireAccessToken rejects requests without a valid "Authorization: Bearer"
// access token with 403. The user id is stored in the request context.
func RequireAccessToken(v AccessTokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			value, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return forbidden(c, "missing_token")
			}
			userID, err := v.VerifyAccessToken(value)
			if err != nil {
				return forbidden(c, "invalid_token")
			}

			r := c.Request()
			c.SetRequest(r.WithContext(auth.WithUserID(r.Context(), userID)))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func forbidden(c echo.Context, reason string) error {
	slog.Debug("access_denied", "path", c.Request().URL.Path, "reason", reason)
	return c.JSON(http.StatusForbidden, map[string]string{
		"message": i18n.T(c.Request().Context(), "forbidden"),
	})
}
