// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package testutil

import (
	"context"
	"sync"
	"time"
)

// SentMail is a message captured by Mailer.
type SentMail struct {
	Kind  string // "reset" or "verification"
	To    string
	Token string
}

// Mailer records account emails instead of sending them. Set Err to make
// every send fail.
type Mailer struct {
	mu   sync.Mutex
	Err  error
	Sent []SentMail
}

// SendPasswordReset records a reset email.
func (m *Mailer) SendPasswordReset(_ context.Context, to, token string, _ time.Duration) error {
	return m.record("reset", to, token)
}

// SendVerification records a verification email.
func (m *Mailer) SendVerification(_ context.Context, to, token string) error {
	return m.record("verification", to, token)
}

// Last returns the most recent email. It panics when nothing was sent.
func (m *Mailer) Last() SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Sent[len(m.Sent)-1]
}

// Count returns the number of captured emails.
func (m *Mailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

func (m *Mailer) record(kind, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{Kind: kind, To: to, Token: token})
	return nil
}
