// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// MessageResponse is the body of requests that only report success.
type MessageResponse struct {
	Message string `json:"message"`
}

var errorMessages = []struct {
	err       error
	status    int
	messageID string
}{
	{auth.ErrMissingFields, http.StatusBadRequest, "missing_fields"},
	{auth.ErrEmailRequired, http.StatusBadRequest, "email_required"},
	{auth.ErrPasswordRequired, http.StatusBadRequest, "password_required"},
	{auth.ErrInvalidCredentials, http.StatusBadRequest, "invalid_credentials"},
	{auth.ErrUnverifiedAccount, http.StatusBadRequest, "unverified_account"},
	{auth.ErrForbidden, http.StatusForbidden, "forbidden"},
	{auth.ErrVerificationFailed, http.StatusBadRequest, "verification_failed"},
	{auth.ErrResetFailed, http.StatusBadRequest, "reset_failed"},
	{auth.ErrEmailNotSent, http.StatusBadRequest, "email_not_sent"},
	{auth.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

// respondError writes the localized response for a flow error. Unclassified
// errors are logged and answered with a generic 500.
func respondError(c echo.Context, err error) error {
	ctx := c.Request().Context()

	var pve *auth.PasswordValidationError
	if errors.As(err, &pve) {
		messages := make([]string, len(pve.Errors))
		for i, ve := range pve.Errors {
			messages[i] = localizeRule(c, ve)
		}
		resp := ErrorResponse{Errors: messages}
		if len(messages) > 0 {
			resp.Message = messages[0]
		}
		return c.JSON(http.StatusBadRequest, resp)
	}

	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, ErrorResponse{Message: i18n.T(ctx, m.messageID)})
		}
	}

	slog.Error("request_failed", "path", c.Request().URL.Path, "error", err)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Message: i18n.T(ctx, "unexpected_error")})
}

func localizeRule(c echo.Context, ve auth.ValidationError) string {
	id := "password_" + ve.Code
	msg := i18n.TData(c.Request().Context(), id, ve.Data)
	if msg == id {
		return ve.Message
	}
	return msg
}

// HTTPErrorHandler renders errors that escape the handlers, such as unknown
// routes or oversized bodies, in the same {message} shape.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = respondError(c, err)
		return
	}

	msg := http.StatusText(he.Code)
	if s, ok := he.Message.(string); ok && s != "" {
		msg = s
	}
	if he.Code >= http.StatusInternalServerError {
		slog.Error("request_failed", "path", c.Request().URL.Path, "error", err)
		msg = i18n.T(c.Request().Context(), "unexpected_error")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(he.Code)
		return
	}
	_ = c.JSON(he.Code, ErrorResponse{Message: msg})
}
