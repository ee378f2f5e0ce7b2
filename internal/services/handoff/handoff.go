// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handoff decodes the signed user reference an SSO gateway passes
// back after a successful external login.
package handoff

import (
	"encoding/hex"
	"errors"
	"fmt"

	"codeberg.org/oliverandrich/go-auth-service/internal/config"
	"github.com/gorilla/securecookie"
)

// name binds signatures to this use so values signed for other purposes are rejected.
const name = "sso_handoff"

// ErrInvalid covers bad signatures, malformed values and expired handoffs.
var ErrInvalid = errors.New("invalid handoff")

type payload struct {
	UserID int64 `json:"uid"`
}

// Codec signs and verifies handoff values.
type Codec struct {
	sc *securecookie.SecureCookie
}

// NewCodec creates a Codec from a 32-byte hex key shared with the gateway.
func NewCodec(cfg *config.HandoffConfig) (*Codec, error) {
	key, err := hex.DecodeString(cfg.HashKey)
	if err != nil {
		return nil, fmt.Errorf("invalid handoff hash key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("handoff hash key must be 32 bytes, got %d", len(key))
	}

	sc := securecookie.New(key, nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	if cfg.MaxAge > 0 {
		sc.MaxAge(cfg.MaxAge)
	}
	return &Codec{sc: sc}, nil
}

// Encode signs a handoff for userID.
func (c *Codec) Encode(userID int64) (string, error) {
	return c.sc.Encode(name, payload{UserID: userID})
}

// Decode verifies value and returns the user id it carries.
func (c *Codec) Decode(value string) (int64, error) {
	if value == "" {
		return 0, ErrInvalid
	}
	var p payload
	if err := c.sc.Decode(name, value, &p); err != nil {
		return 0, ErrInvalid
	}
	if p.UserID <= 0 {
		return 0, ErrInvalid
	}
	return p.UserID, nil
}
