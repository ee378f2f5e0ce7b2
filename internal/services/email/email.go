// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email renders and dispatches account emails.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/i18n"
)

// Message is a rendered plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport delivers a rendered message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Service renders localized account emails and hands them to a Transport.
type Service struct {
	transport Transport
	baseURL   string
	resetURL  string
}

// NewService creates a new email service. Reset links are resetURL + "/" + token,
// verification links are baseURL + "/auth/verify/" + token.
func NewService(transport Transport, baseURL, resetURL string) (*Service, error) {
	if transport == nil {
		return nil, errors.New("mail transport is required")
	}
	if resetURL == "" {
		return nil, errors.New("reset password URL is required")
	}
	return &Service{
		transport: transport,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		resetURL:  strings.TrimSuffix(resetURL, "/"),
	}, nil
}

// SendPasswordReset sends the reset link carrying the plaintext token.
func (s *Service) SendPasswordReset(ctx context.Context, to, token string, validFor time.Duration) error {
	link := s.resetURL + "/" + url.PathEscape(token)
	return s.send(ctx, Message{
		To:      to,
		Subject: i18n.T(ctx, "email_reset_subject"),
		Body: i18n.TData(ctx, "email_reset_body", map[string]any{
			"URL":   link,
			"Hours": int(validFor.Hours()),
		}),
	})
}

// SendVerification sends the email verification link carrying the plaintext token.
func (s *Service) SendVerification(ctx context.Context, to, token string) error {
	link := s.baseURL + "/auth/verify/" + url.PathEscape(token)
	return s.send(ctx, Message{
		To:      to,
		Subject: i18n.T(ctx, "email_verification_subject"),
		Body:    i18n.TData(ctx, "email_verification_body", map[string]any{"URL": link}),
	})
}

func (s *Service) send(ctx context.Context, msg Message) error {
	if err := s.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}
