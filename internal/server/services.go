// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"codeberg.org/oliverandrich/go-auth-service/internal/database"
	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
	"codeberg.org/oliverandrich/go-auth-service/internal/metrics"
	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/auth"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/email"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/handoff"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/ratelimit"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/secret"
	"codeberg.org/oliverandrich/go-auth-service/internal/services/token"
	"github.com/redis/go-redis/v9"
	"github.com/vinovest/sqlx"
)

// Services bundles everything the HTTP server and the CLI commands share.
type Services struct {
	DB      *sqlx.DB
	Repo    *repository.Repository
	Auth    *auth.Service
	Metrics *metrics.Metrics
	Limiter *ratelimit.Limiter // nil without redis
	Handoff *handoff.Codec     // nil without a handoff key

	redis *redis.Client
}

// NewServices opens the database and wires the auth flows. When no SMTP
// server is configured, outgoing mail is written to mailOut.
func NewServices(ctx context.Context, cfg *config.Config, mailOut io.Writer) (*Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Services{DB: db, Repo: repository.New(db), Metrics: metrics.New()}

	if err := s.wire(ctx, cfg, mailOut); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Services) wire(ctx context.Context, cfg *config.Config, mailOut io.Writer) error {
	tokens, err := token.New(token.Config{
		AccessSecret:  []byte(cfg.Auth.AccessTokenSecret),
		RefreshSecret: []byte(cfg.Auth.RefreshTokenSecret),
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	transport, err := newTransport(cfg, mailOut)
	if err != nil {
		return err
	}
	mailer, err := email.NewService(transport, cfg.Server.BaseURL, cfg.Auth.ResetPasswordURL)
	if err != nil {
		return fmt.Errorf("failed to create mailer: %w", err)
	}

	opts := []auth.Option{
		auth.WithMetrics(s.Metrics),
		auth.WithRefreshRotation(cfg.Auth.RotateRefreshTokens),
	}

	if cfg.Redis.Enabled() {
		client, err := ratelimit.NewClient(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		s.redis = client
		s.Limiter = ratelimit.New(client, ratelimit.Config{
			MaxLoginAttempts: cfg.Redis.MaxLoginAttempts,
			LoginWindow:      cfg.Redis.LoginWindow,
			MaxResetRequests: cfg.Redis.MaxResetRequests,
			ResetWindow:      cfg.Redis.ResetWindow,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.Limiter.Ping(pingCtx); err != nil {
			slog.Warn("redis_unreachable", "error", err)
		}
		opts = append(opts, auth.WithLimiter(s.Limiter))
	}

	if cfg.Handoff.HashKey != "" {
		if s.Handoff, err = handoff.NewCodec(&cfg.Handoff); err != nil {
			return err
		}
	}

	s.Auth, err = auth.NewService(s.Repo, secret.NewHasher(cfg.Auth.BcryptCost), tokens, mailer, opts...)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}
	return nil
}

func newTransport(cfg *config.Config, mailOut io.Writer) (email.Transport, error) {
	if cfg.SMTP.Enabled() {
		t, err := email.NewSMTPTransport(&cfg.SMTP)
		if err != nil {
			return nil, fmt.Errorf("failed to create smtp transport: %w", err)
		}
		return t, nil
	}
	slog.Warn("smtp not configured, emails are written to the console")
	return email.NewWriterTransport(mailOut), nil
}

// PurgeExpiredResetTokens clears reset tokens that can no longer be used
// every interval until ctx is done.
func (s *Services) PurgeExpiredResetTokens(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeOnce(ctx)
		}
	}
}

func (s *Services) purgeOnce(ctx context.Context) {
	n, err := s.Repo.DeleteExpiredResetTokens(ctx, time.Now())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("reset_token_purge_failed", "error", err)
		}
		return
	}
	if n > 0 {
		slog.Info("reset_tokens_purged", "count", n)
	}
}

// Close releases the database and redis connections.
func (s *Services) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, database.Close(s.DB))
	return errors.Join(errs...)
}
