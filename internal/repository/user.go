// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/models"
)

// CreateUser creates a new unverified user.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string) (*models.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash) VALUES (?, ?)`,
		email, passwordHash)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, `SELECT * FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by their login email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `SELECT * FROM users WHERE email = ?`, email)
}

// GetUserByVerifyTokenHash retrieves the user holding the given verification fingerprint.
func (r *Repository) GetUserByVerifyTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.getUser(ctx, `SELECT * FROM users WHERE verify_email_token_hash = ?`, tokenHash)
}

// GetUserByResetTokenHash retrieves the user holding the given reset fingerprint.
func (r *Repository) GetUserByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.getUser(ctx, `SELECT * FROM users WHERE reset_password_token_hash = ?`, tokenHash)
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// EmailExists checks if a user with the given email exists.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM users WHERE email = ?`, email); err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetEmailVerificationToken stores a verification fingerprint and, for an address
// change, the pending new email.
func (r *Repository) SetEmailVerificationToken(ctx context.Context, userID int64, tokenHash string, newEmail *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET verify_email_token_hash = ?, new_email = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?`,
		tokenHash, newEmail, userID)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return ErrNotFound
	}
	return nil
}

// MarkEmailVerified consumes the verification token: the user becomes verified,
// the fingerprint is cleared and a pending new email replaces the login email.
// The update only applies while tokenHash is still the stored fingerprint.
func (r *Repository) MarkEmailVerified(ctx context.Context, userID int64, tokenHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET is_verified = 1,
		        verify_email_token_hash = NULL,
		        email = COALESCE(NULLIF(new_email, ''), email),
		        new_email = NULL,
		        updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND verify_email_token_hash = ?`,
		userID, tokenHash)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// SetPasswordResetToken stores the reset fingerprint together with its expiry.
func (r *Repository) SetPasswordResetToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET reset_password_token_hash = ?, reset_password_expires_at = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE id = ?`,
		tokenHash, expiresAt.UTC(), userID)
	if err != nil {
		return err
	}
	if err := expectOneRow(res); err != nil {
		return ErrNotFound
	}
	return nil
}

// ResetPassword consumes the reset token and stores the new password hash.
// The update only applies while tokenHash is still the stored fingerprint.
func (r *Repository) ResetPassword(ctx context.Context, userID int64, tokenHash, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET password_hash = ?,
		        reset_password_token_hash = NULL,
		        reset_password_expires_at = NULL,
		        updated_at = CURRENT_TIMESTAMP
		  WHERE id = ? AND reset_password_token_hash = ?`,
		passwordHash, userID, tokenHash)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// DeleteExpiredResetTokens clears reset fingerprints whose expiry has passed.
func (r *Repository) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET reset_password_token_hash = NULL, reset_password_expires_at = NULL
		  WHERE reset_password_expires_at IS NOT NULL AND reset_password_expires_at <= ?`,
		now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
