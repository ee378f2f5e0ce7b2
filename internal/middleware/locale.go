// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"github.com/labstack/echo/v4"
)

// HeaderAcceptLanguage is not among echo's header constants.
const HeaderAcceptLanguage = "Accept-Language"

// Locale detects the preferred language from the Accept-Language header and
// stores a localizer in the request context.
func Locale() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			lang := i18n.MatchLanguage(r.Header.Get(HeaderAcceptLanguage))
			c.SetRequest(r.WithContext(i18n.WithLocale(r.Context(), lang)))
			return next(c)
		}
	}
}
