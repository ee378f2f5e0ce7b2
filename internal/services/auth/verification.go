// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/secret"
)

// VerifyEmail consumes a verification token. The user becomes verified and a
// pending email change is applied. A token works at most once.
func (s *Service) VerifyEmail(ctx context.Context, verifyToken string) (err error) {
	defer func() { s.observe("verify_email", err) }()

	if verifyToken == "" {
		return ErrVerificationFailed
	}
	fingerprint := secret.Fingerprint(verifyToken)

	user, err := s.store.GetUserByVerifyTokenHash(ctx, fingerprint)
	if err != nil {
		if isNotFound(err) {
			slog.Warn("email_verification_failed", "reason", "unknown_token")
			return ErrVerificationFailed
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.store.MarkEmailVerified(ctx, user.ID, fingerprint); err != nil {
		if errors.Is(err, repository.ErrStaleToken) {
			slog.Warn("email_verification_failed", "user_id", user.ID, "reason", "token_consumed")
			return ErrVerificationFailed
		}
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	slog.Info("email_verified", "user_id", user.ID, "email_changed", user.HasPendingEmailChange())
	return nil
}

// IssueEmailVerification mails a verification link for the user's current
// email or, when newEmail is set, for an address change. The token is stored
// only after the mail went out.
func (s *Service) IssueEmailVerification(ctx context.Context, userID int64, newEmail string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	to := user.Email
	var pending *string
	if newEmail != "" {
		newEmail = normalizeEmail(newEmail)
		if !validEmail(newEmail) {
			return ErrInvalidEmail
		}
		exists, err := s.store.EmailExists(ctx, newEmail)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if exists {
			return ErrUserExists
		}
		to = newEmail
		pending = &newEmail
	}

	plaintext, fingerprint, err := secret.GenerateToken()
	if err != nil {
		return err
	}
	if err := s.mailer.SendVerification(ctx, to, plaintext); err != nil {
		slog.Error("email_verification_not_sent", "user_id", user.ID, "error", err)
		return ErrEmailNotSent
	}
	if err := s.store.SetEmailVerificationToken(ctx, user.ID, fingerprint, pending); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	slog.Info("email_verification_sent", "user_id", user.ID, "email_change", pending != nil)
	return nil
}
