// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/go-auth-service/internal/auth"
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	authsvc "codeberg.org/oliverandrich/go-auth-service/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// HandoffDecoder verifies an SSO handoff value and returns its user id.
type HandoffDecoder interface {
	Decode(value string) (int64, error)
}

// AuthHandlers exposes the authentication flows over HTTP.
type AuthHandlers struct {
	auth        *authsvc.Service
	cookie      CookieConfig
	handoff     HandoffDecoder
	redirectURL string
}

// NewAuth creates a new AuthHandlers instance. handoff may be nil when no SSO
// gateway is configured.
func NewAuth(svc *authsvc.Service, cookie CookieConfig, handoff HandoffDecoder, redirectURL string) *AuthHandlers {
	return &AuthHandlers{
		auth:        svc,
		cookie:      cookie,
		handoff:     handoff,
		redirectURL: strings.TrimSuffix(redirectURL, "/"),
	}
}

// LoginRequest is the request body for Login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest is the request body for ForgotPassword.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the request body for ResetPassword.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// TokenResponse carries a fresh access token.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// MeResponse describes the authenticated user.
type MeResponse struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	IsVerified bool   `json:"isVerified"`
}

// Login handles POST /auth.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return h.invalidRequest(c)
	}

	sess, err := h.auth.Login(c.Request().Context(), authsvc.LoginParams{
		Email:    req.Email,
		Password: req.Password,
		IP:       c.RealIP(),
	})
	if err != nil {
		return respondError(c, err)
	}

	c.SetCookie(h.cookie.refreshCookie(sess.Refresh.Value, h.auth.RefreshTTL()))
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: sess.AccessToken})
}

// Refresh handles GET /auth/refresh.
func (h *AuthHandlers) Refresh(c echo.Context) error {
	sess, err := h.auth.Refresh(c.Request().Context(), h.refreshToken(c))
	if err != nil {
		return respondError(c, err)
	}

	if sess.Refresh.Value != "" {
		c.SetCookie(h.cookie.refreshCookie(sess.Refresh.Value, h.auth.RefreshTTL()))
	}
	return c.JSON(http.StatusOK, TokenResponse{AccessToken: sess.AccessToken})
}

// Logout handles POST /auth/logout. It succeeds with or without a session.
func (h *AuthHandlers) Logout(c echo.Context) error {
	h.auth.Logout(c.Request().Context(), h.refreshToken(c))
	c.SetCookie(h.cookie.clearCookie())
	return c.JSON(http.StatusOK, MessageResponse{Message: i18n.T(c.Request().Context(), "logged_out")})
}

// VerifyEmail handles GET and PATCH /auth/verify/:token.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	if err := h.auth.VerifyEmail(c.Request().Context(), c.Param("token")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, MessageResponse{Message: i18n.T(c.Request().Context(), "email_verified")})
}

// ForgotPassword handles PATCH /auth/forgot.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return h.invalidRequest(c)
	}

	if err := h.auth.ForgotPassword(c.Request().Context(), req.Email, c.RealIP()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: i18n.T(c.Request().Context(), "reset_link_sent")})
}

// ResetPassword handles PATCH /auth/reset/:token.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return h.invalidRequest(c)
	}

	if err := h.auth.ResetPassword(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: i18n.T(c.Request().Context(), "password_reset")})
}

// CompleteSSO handles GET /auth/sso?handoff=... after an external login.
func (h *AuthHandlers) CompleteSSO(c echo.Context) error {
	if h.handoff == nil {
		return respondError(c, authsvc.ErrForbidden)
	}

	userID, err := h.handoff.Decode(c.QueryParam("handoff"))
	if err != nil {
		slog.Warn("sso_failed", "reason", "invalid_handoff")
		return respondError(c, authsvc.ErrForbidden)
	}

	sess, err := h.auth.CompleteSSO(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	c.SetCookie(h.cookie.refreshCookie(sess.Refresh.Value, h.auth.RefreshTTL()))
	return c.Redirect(http.StatusSeeOther, h.redirectURL+"/?authenticated=true")
}

// Me handles GET /api/me behind the access token middleware.
func (h *AuthHandlers) Me(c echo.Context) error {
	userID, ok := auth.UserID(c.Request().Context())
	if !ok {
		return respondError(c, authsvc.ErrForbidden)
	}

	user, err := h.auth.GetUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, MeResponse{ID: user.ID, Email: user.Email, IsVerified: user.IsVerified})
}

func (h *AuthHandlers) refreshToken(c echo.Context) string {
	cookie, err := c.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *AuthHandlers) invalidRequest(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Message: i18n.T(c.Request().Context(), "invalid_request")})
}
