// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/ratelimit"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/secret"
)

// ForgotPassword mails a reset link. An unknown email and a failed delivery
// both return ErrEmailNotSent. The reset token is stored only once the mail
// has been accepted for delivery.
func (s *Service) ForgotPassword(ctx context.Context, email, ip string) (err error) {
	defer func() { s.observe("forgot_password", err) }()

	if email == "" {
		return ErrEmailRequired
	}
	email = normalizeEmail(email)

	if s.limiter != nil {
		if err := s.limiter.AllowPasswordReset(ctx, email, ip); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				slog.Warn("password_reset_request_failed", "email", email, "reason", "rate_limited")
				return ErrRateLimited
			}
			limiterWarn("password_reset_throttle_skipped", err)
		}
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			slog.Warn("password_reset_request_failed", "email", email, "reason", "user_not_found")
			return ErrEmailNotSent
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	plaintext, fingerprint, err := secret.GenerateToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(ResetTokenExpiry)

	if err := s.mailer.SendPasswordReset(ctx, user.Email, plaintext, ResetTokenExpiry); err != nil {
		slog.Error("password_reset_request_failed", "user_id", user.ID, "reason", "mail_failed", "error", err)
		return ErrEmailNotSent
	}

	if err := s.store.SetPasswordResetToken(ctx, user.ID, fingerprint, expiresAt); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	slog.Info("password_reset_requested", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password using a reset token. Unknown, expired and
// already used tokens all return ErrResetFailed. A token is valid strictly
// before its expiry instant.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) (err error) {
	defer func() { s.observe("reset_password", err) }()

	if newPassword == "" {
		return ErrPasswordRequired
	}
	if resetToken == "" {
		return ErrResetFailed
	}
	fingerprint := secret.Fingerprint(resetToken)

	user, err := s.store.GetUserByResetTokenHash(ctx, fingerprint)
	if err != nil {
		if isNotFound(err) {
			slog.Warn("password_reset_failed", "reason", "unknown_token")
			return ErrResetFailed
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if user.ResetTokenExpired(s.now()) {
		slog.Warn("password_reset_failed", "user_id", user.ID, "reason", "expired")
		return ErrResetFailed
	}

	if result := s.passwordValidator.Validate(newPassword, user.Email); !result.Valid {
		return &PasswordValidationError{Errors: result.Errors}
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.store.ResetPassword(ctx, user.ID, fingerprint, passwordHash); err != nil {
		if errors.Is(err, repository.ErrStaleToken) {
			slog.Warn("password_reset_failed", "user_id", user.ID, "reason", "token_consumed")
			return ErrResetFailed
		}
		return fmt.Errorf("failed to reset password: %w", err)
	}

	// Issued tokens stay valid until they expire.
	slog.Info("password_reset", "user_id", user.ID)
	return nil
}
