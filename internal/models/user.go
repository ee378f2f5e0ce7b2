// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// User is the credential record of an account.
//
// Token hash fields hold SHA256 fingerprints only; plaintext tokens are never stored.
// ResetPasswordTokenHash and ResetPasswordExpiresAt are always set and cleared together.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                     int64      `db:"id" json:"id"`
	Email                  string     `db:"email" json:"email"`
	NewEmail               *string    `db:"new_email" json:"new_email,omitempty"`
	PasswordHash           string     `db:"password_hash" json:"-"`
	IsVerified             bool       `db:"is_verified" json:"is_verified"`
	VerifyEmailTokenHash   *string    `db:"verify_email_token_hash" json:"-"`
	ResetPasswordTokenHash *string    `db:"reset_password_token_hash" json:"-"`
	ResetPasswordExpiresAt *time.Time `db:"reset_password_expires_at" json:"-"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
}

// HasPendingEmailChange reports whether a new address awaits verification.
func (u *User) HasPendingEmailChange() bool {
	return u.NewEmail != nil && *u.NewEmail != ""
}

// ResetTokenExpired reports whether the reset token is no longer usable at now.
// A token is valid strictly before its expiry instant.
func (u *User) ResetTokenExpired(now time.Time) bool {
	if u.ResetPasswordExpiresAt == nil {
		return true
	}
	return !now.Before(*u.ResetPasswordExpiresAt)
}
