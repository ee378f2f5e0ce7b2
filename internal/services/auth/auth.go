// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements the credential lifecycle: login, token refresh,
// logout, email verification and password reset.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/models"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/secret"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
)

var (
	ErrMissingFields      = errors.New("all fields are required")
	ErrEmailRequired      = errors.New("email required")
	ErrPasswordRequired   = errors.New("password required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverifiedAccount  = errors.New("email not verified")
	ErrForbidden          = errors.New("forbidden")
	ErrVerificationFailed = errors.New("email verification failed")
	ErrResetFailed        = errors.New("password reset failed")
	ErrEmailNotSent       = errors.New("email could not be sent")
	ErrRateLimited        = errors.New("too many requests")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// ResetTokenExpiry is how long a password reset link stays valid.
const ResetTokenExpiry = 24 * time.Hour

// Store is the credential store the flows read and transition.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByVerifyTokenHash(ctx context.Context, tokenHash string) (*models.User, error)
	GetUserByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	SetEmailVerificationToken(ctx context.Context, userID int64, tokenHash string, newEmail *string) error
	MarkEmailVerified(ctx context.Context, userID int64, tokenHash string) error
	SetPasswordResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, userID int64, tokenHash, passwordHash string) error
}

// Mailer delivers account emails carrying plaintext tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, token string, validFor time.Duration) error
	SendVerification(ctx context.Context, to, token string) error
}

// Limiter throttles attempts and consumes refresh token ids.
type Limiter interface {
	AllowLogin(ctx context.Context, email, ip string) error
	RecordLoginFailure(ctx context.Context, email, ip string) error
	ResetLogin(ctx context.Context, email string) error
	AllowPasswordReset(ctx context.Context, email, ip string) error
	ConsumeTokenID(ctx context.Context, id string, ttl time.Duration) error
}

// Recorder counts flow outcomes.
type Recorder interface {
	RecordAuth(operation, outcome string)
}

// Session is the result of a successful authentication. Refresh is zero when
// the refresh token was not (re)issued.
type Session struct {
	UserID      int64
	AccessToken string
	Refresh     token.Issued
}

// Service runs the authentication flows.
type Service struct {
	store             Store
	hasher            *secret.Hasher
	tokens            *token.Issuer
	mailer            Mailer
	limiter           Limiter
	metrics           Recorder
	passwordValidator *PasswordValidator
	rotateRefresh     bool
	now               func() time.Time
	dummyHash         string
}

// Option configures a Service.
type Option func(*Service)

// WithLimiter enables rate limiting and, with rotation, refresh replay protection.
func WithLimiter(l Limiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithMetrics records flow outcomes.
func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock replaces time.Now for reset token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRefreshRotation issues a new refresh token on every refresh and rejects
// reuse of the old one. It needs a Limiter to remember consumed token ids.
func WithRefreshRotation(enabled bool) Option {
	return func(s *Service) { s.rotateRefresh = enabled }
}

// NewService creates the flow controller.
func NewService(store Store, hasher *secret.Hasher, tokens *token.Issuer, mailer Mailer, opts ...Option) (*Service, error) {
	s := &Service{
		store:             store,
		hasher:            hasher,
		tokens:            tokens,
		mailer:            mailer,
		passwordValidator: DefaultPasswordValidator(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rotateRefresh && s.limiter == nil {
		return nil, errors.New("refresh token rotation requires a limiter")
	}

	// Compared against when the email is unknown so both paths cost one bcrypt run.
	dummy, err := hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy
	return s, nil
}

// PasswordValidator returns the validator applied to new passwords.
func (s *Service) PasswordValidator() *PasswordValidator {
	return s.passwordValidator
}

// RefreshTTL is the lifetime of refresh tokens and their cookie.
func (s *Service) RefreshTTL() time.Duration {
	return s.tokens.TTL(token.Refresh)
}

// GetUser returns the user an access token was issued for.
func (s *Service) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	return user, nil
}

// VerifyAccessToken returns the user id of a valid access token.
func (s *Service) VerifyAccessToken(value string) (int64, error) {
	id, err := s.tokens.Verify(value, token.Access)
	if err != nil {
		return 0, ErrForbidden
	}
	return id, nil
}

func (s *Service) observe(operation string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordAuth(operation, Outcome(err))
}

// Outcome labels err for metrics.
func Outcome(err error) string {
	var pve *PasswordValidationError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrPasswordRequired), errors.As(err, &pve):
		return "invalid_input"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnverifiedAccount):
		return "unverified"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrVerificationFailed), errors.Is(err, ErrResetFailed):
		return "invalid_token"
	case errors.Is(err, ErrEmailNotSent):
		return "email_not_sent"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// limiterWarn logs a limiter failure; throttles fail open.
func limiterWarn(event string, err error) {
	slog.Warn(event, "reason", "limiter_unavailable", "error", err)
}
