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
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
)

// LoginParams holds the login input. IP is used for throttling only.
type LoginParams struct {
	Email    string
	Password string
	IP       string
}

// Login checks the credentials and issues an access and a refresh token.
// Unknown email and wrong password fail identically; an unverified account is
// only reported after the password matched.
func (s *Service) Login(ctx context.Context, params LoginParams) (sess *Session, err error) {
	defer func() { s.observe("login", err) }()

	if params.Email == "" || params.Password == "" {
		return nil, ErrMissingFields
	}
	email := normalizeEmail(params.Email)

	if s.limiter != nil {
		if err := s.limiter.AllowLogin(ctx, email, params.IP); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				slog.Warn("login_failed", "email", email, "reason", "rate_limited")
				return nil, ErrRateLimited
			}
			limiterWarn("login_throttle_skipped", err)
		}
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		s.hasher.Compare(params.Password, s.dummyHash)
		s.recordLoginFailure(ctx, email, params.IP)
		slog.Warn("login_failed", "email", email, "reason", "user_not_found")
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Compare(params.Password, user.PasswordHash) {
		s.recordLoginFailure(ctx, email, params.IP)
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "unverified")
		return nil, ErrUnverifiedAccount
	}

	if s.limiter != nil {
		if err := s.limiter.ResetLogin(ctx, email); err != nil {
			limiterWarn("login_throttle_reset_skipped", err)
		}
	}

	sess, err = s.issueSession(user.ID, true)
	if err != nil {
		return nil, err
	}
	slog.Info("login_success", "user_id", user.ID)
	return sess, nil
}

// Refresh exchanges a valid refresh token for a new access token. Every
// failure is ErrForbidden. With rotation enabled the refresh token is
// consumed and a new one is returned in Session.Refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (sess *Session, err error) {
	defer func() { s.observe("refresh", err) }()

	if refreshToken == "" {
		return nil, ErrForbidden
	}
	claims, err := s.tokens.Parse(refreshToken, token.Refresh)
	if err != nil {
		slog.Warn("refresh_failed", "reason", "invalid_token")
		return nil, ErrForbidden
	}
	userID, _ := claims.UserID()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			slog.Warn("refresh_failed", "user_id", userID, "reason", "user_not_found")
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if s.rotateRefresh {
		if err := s.consumeRefresh(ctx, claims); err != nil {
			if errors.Is(err, ratelimit.ErrReplayed) {
				slog.Warn("refresh_failed", "user_id", user.ID, "reason", "replayed")
				return nil, ErrForbidden
			}
			return nil, fmt.Errorf("failed to consume refresh token: %w", err)
		}
	}

	return s.issueSession(user.ID, s.rotateRefresh)
}

// Logout always succeeds. With rotation enabled a valid refresh token is
// consumed so it cannot be used again.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	defer s.observe("logout", nil)

	if !s.rotateRefresh || refreshToken == "" {
		return
	}
	claims, err := s.tokens.Parse(refreshToken, token.Refresh)
	if err != nil {
		return
	}
	if err := s.consumeRefresh(ctx, claims); err != nil && !errors.Is(err, ratelimit.ErrReplayed) {
		slog.Warn("logout_revoke_failed", "error", err)
	}
}

// CompleteSSO issues a session for a user an external identity provider has
// already authenticated.
func (s *Service) CompleteSSO(ctx context.Context, userID int64) (sess *Session, err error) {
	defer func() { s.observe("sso", err) }()

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			slog.Warn("sso_failed", "user_id", userID, "reason", "user_not_found")
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	sess, err = s.issueSession(user.ID, true)
	if err != nil {
		return nil, err
	}
	slog.Info("sso_success", "user_id", user.ID)
	return sess, nil
}

func (s *Service) issueSession(userID int64, withRefresh bool) (*Session, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, err
	}
	sess := &Session{UserID: userID, AccessToken: access.Value}
	if withRefresh {
		if sess.Refresh, err = s.tokens.IssueRefresh(userID); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func (s *Service) consumeRefresh(ctx context.Context, claims *token.Claims) error {
	ttl := claims.ExpiresAt.Sub(s.now())
	return s.limiter.ConsumeTokenID(ctx, claims.ID, ttl)
}

func (s *Service) recordLoginFailure(ctx context.Context, email, ip string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordLoginFailure(ctx, email, ip); err != nil {
		limiterWarn("login_failure_not_recorded", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
