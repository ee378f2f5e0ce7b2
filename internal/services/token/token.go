// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies signed access and refresh tokens.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context names a signing context. Each context has its own secret and lifetime.
type Context string

const (
	Access  Context = "access"
	Refresh Context = "refresh"
)

// ErrInvalid covers malformed, badly signed, wrong-context and expired tokens alike.
var ErrInvalid = errors.New("invalid token")

// Config holds the secrets and lifetimes of both signing contexts.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Claims are the registered JWT claims carried by every token.
// Subject holds the user id, ID a unique token id and Audience the signing context.
type Claims struct {
	jwt.RegisteredClaims
}

// Issued is a freshly signed token.
type Issued struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

type signer struct {
	secret []byte
	ttl    time.Duration
}

// Issuer signs and verifies tokens for the access and refresh contexts.
type Issuer struct {
	contexts map[Context]signer
	now      func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// New creates an Issuer. Both secrets are required and must differ.
func New(cfg Config, opts ...Option) (*Issuer, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	i := &Issuer{
		contexts: map[Context]signer{
			Access:  {secret: cfg.AccessSecret, ttl: cfg.AccessTTL},
			Refresh: {secret: cfg.RefreshSecret, ttl: cfg.RefreshTTL},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime of tokens issued in the given context.
func (i *Issuer) TTL(ctx Context) time.Duration {
	return i.contexts[ctx].ttl
}

// IssueAccess signs a short-lived access token for userID.
func (i *Issuer) IssueAccess(userID int64) (Issued, error) {
	return i.issue(Access, userID)
}

// IssueRefresh signs a long-lived refresh token for userID.
func (i *Issuer) IssueRefresh(userID int64) (Issued, error) {
	return i.issue(Refresh, userID)
}

func (i *Issuer) issue(ctx Context, userID int64) (Issued, error) {
	s, ok := i.contexts[ctx]
	if !ok {
		return Issued{}, fmt.Errorf("unknown token context %q", ctx)
	}

	now := i.now()
	id := uuid.NewString()
	exp := jwt.NewNumericDate(now.Add(s.ttl))
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{string(ctx)},
			ExpiresAt: exp,
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        id,
		},
	}

	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("failed to sign %s token: %w", ctx, err)
	}
	return Issued{Value: value, ID: id, ExpiresAt: exp.Time}, nil
}

// Verify checks signature, context and expiry and returns the user id.
// A token is valid strictly before its expiry instant.
func (i *Issuer) Verify(value string, ctx Context) (int64, error) {
	claims, err := i.Parse(value, ctx)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}

// Parse is Verify returning the full claims.
func (i *Issuer) Parse(value string, ctx Context) (*Claims, error) {
	s, ok := i.contexts[ctx]
	if !ok || value == "" {
		return nil, ErrInvalid
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(value, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(ctx)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, ErrInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// UserID decodes the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalid
	}
	return id, nil
}
