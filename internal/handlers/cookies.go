// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"
)

// CookieConfig describes the refresh token cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// refreshCookie carries the refresh token. A secure cookie is sent
// cross-site so a frontend on another origin can refresh; without TLS
// browsers refuse SameSite=None, so Lax is used instead.
func (cc CookieConfig) refreshCookie(value string, maxAge time.Duration) *http.Cookie {
	cookie := &http.Cookie{
		Name:     cc.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if cc.Secure {
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

// clearCookie unsets the refresh cookie with matching attributes.
func (cc CookieConfig) clearCookie() *http.Cookie {
	cookie := cc.refreshCookie("", 0)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	return cookie
}
