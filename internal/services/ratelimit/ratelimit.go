// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit throttles login and password-reset attempts and guards
// refresh tokens against replay, using Redis fixed-window counters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when a window budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrReplayed is returned when a token id has already been consumed.
	ErrReplayed = errors.New("token already used")
	// ErrUnavailable wraps Redis failures.
	ErrUnavailable = errors.New("redis unavailable")
)

const (
	loginEmailPrefix = "auth:login:email:"
	loginIPPrefix    = "auth:login:ip:"
	resetEmailPrefix = "auth:reset:email:"
	resetIPPrefix    = "auth:reset:ip:"
	tokenIDPrefix    = "auth:jti:"
)

// Config holds the window budgets.
type Config struct {
	MaxLoginAttempts int
	LoginWindow      time.Duration
	MaxResetRequests int
	ResetWindow      time.Duration
}

// Limiter enforces the budgets against Redis.
type Limiter struct {
	redis redis.UniversalClient
	cfg   Config
}

// New creates a Limiter backed by the given Redis client.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: client, cfg: cfg}
}

// NewClient opens a Redis client from a redis:// URL.
func NewClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Ping checks that Redis is reachable.
func (l *Limiter) Ping(ctx context.Context) error {
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// AllowLogin reports ErrRateLimited once the failed attempts recorded for the
// email or the client IP reach the budget. It does not count the attempt itself.
func (l *Limiter) AllowLogin(ctx context.Context, email, ip string) error {
	for _, key := range l.loginKeys(email, ip) {
		count, err := l.redis.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if count >= int64(l.cfg.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// RecordLoginFailure counts a failed login for the email and the client IP.
func (l *Limiter) RecordLoginFailure(ctx context.Context, email, ip string) error {
	for _, key := range l.loginKeys(email, ip) {
		if _, err := l.incrementWithTTL(ctx, key, l.cfg.LoginWindow); err != nil {
			return err
		}
	}
	return nil
}

// ResetLogin clears the per-email failure counter after a successful login.
// The per-IP counter keeps running.
func (l *Limiter) ResetLogin(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, loginEmailPrefix+normalize(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// AllowPasswordReset counts a reset request for the email and the client IP
// and reports ErrRateLimited when either exceeds the budget.
func (l *Limiter) AllowPasswordReset(ctx context.Context, email, ip string) error {
	keys := []string{resetEmailPrefix + normalize(email)}
	if ip != "" {
		keys = append(keys, resetIPPrefix+ip)
	}
	for _, key := range keys {
		count, err := l.incrementWithTTL(ctx, key, l.cfg.ResetWindow)
		if err != nil {
			return err
		}
		if count > int64(l.cfg.MaxResetRequests) {
			return ErrRateLimited
		}
	}
	return nil
}

// ConsumeTokenID marks a token id as used until ttl elapses.
// A second call for the same id returns ErrReplayed.
func (l *Limiter) ConsumeTokenID(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := l.redis.SetNX(ctx, tokenIDPrefix+id, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrReplayed
	}
	return nil
}

func (l *Limiter) loginKeys(email, ip string) []string {
	keys := []string{loginEmailPrefix + normalize(email)}
	if ip != "" {
		keys = append(keys, loginIPPrefix+ip)
	}
	return keys
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed window: the first hit starts the clock.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return count, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
