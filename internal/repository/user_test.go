// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/go-auth-service/internal/repository"
	"codeberg.org/oliverandrich/go-auth-service/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, "alice@example.com", "$2a$10$hash")

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.IsVerified)
	assert.Nil(t, user.NewEmail)
	assert.Nil(t, user.ResetPasswordTokenHash)
	assert.False(t, user.CreatedAt.IsZero())
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, "alice@example.com", "$2a$10$hash")
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, "alice@example.com", "$2a$10$other")

	assert.Error(t, err)
}

func TestGetUserByEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	created := testutil.NewTestUser(t, repo, "bob@example.com")

	user, err := repo.GetUserByEmail(context.Background(), "bob@example.com")

	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotEmpty(t, user.PasswordHash)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByEmail(context.Background(), "nobody@example.com")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByID_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByID(context.Background(), 999)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEmailExists(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "carol@example.com")

	exists, err := repo.EmailExists(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.EmailExists(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMarkEmailVerified(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "erin@example.com")
	require.NoError(t, repo.SetEmailVerificationToken(ctx, user.ID, "verify-hash", nil))

	found, err := repo.GetUserByVerifyTokenHash(ctx, "verify-hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	err = repo.MarkEmailVerified(ctx, user.ID, "verify-hash")
	require.NoError(t, err)

	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsVerified)
	assert.Nil(t, updated.VerifyEmailTokenHash)
	assert.Equal(t, "erin@example.com", updated.Email)

	_, err = repo.GetUserByVerifyTokenHash(ctx, "verify-hash")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMarkEmailVerified_PromotesNewEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewVerifiedUser(t, repo, "old@example.com")
	newEmail := "new@example.com"
	require.NoError(t, repo.SetEmailVerificationToken(ctx, user.ID, "change-hash", &newEmail))

	require.NoError(t, repo.MarkEmailVerified(ctx, user.ID, "change-hash"))

	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Nil(t, updated.NewEmail)
	assert.True(t, updated.IsVerified)
}

func TestMarkEmailVerified_StaleToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "frank@example.com")
	require.NoError(t, repo.SetEmailVerificationToken(ctx, user.ID, "verify-hash", nil))
	require.NoError(t, repo.MarkEmailVerified(ctx, user.ID, "verify-hash"))

	err := repo.MarkEmailVerified(ctx, user.ID, "verify-hash")

	assert.ErrorIs(t, err, repository.ErrStaleToken)
}

func TestSetEmailVerificationToken_UnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.SetEmailVerificationToken(context.Background(), 42, "hash", nil)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSetPasswordResetToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewVerifiedUser(t, repo, "grace@example.com")
	expiresAt := time.Now().Add(24 * time.Hour).Truncate(time.Second)

	require.NoError(t, repo.SetPasswordResetToken(ctx, user.ID, "reset-hash", expiresAt))

	found, err := repo.GetUserByResetTokenHash(ctx, "reset-hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	require.NotNil(t, found.ResetPasswordExpiresAt)
	assert.True(t, expiresAt.Equal(*found.ResetPasswordExpiresAt))
}

func TestSetPasswordResetToken_ReplacesPrevious(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewVerifiedUser(t, repo, "heidi@example.com")
	expiresAt := time.Now().Add(time.Hour)

	require.NoError(t, repo.SetPasswordResetToken(ctx, user.ID, "first", expiresAt))
	require.NoError(t, repo.SetPasswordResetToken(ctx, user.ID, "second", expiresAt))

	_, err := repo.GetUserByResetTokenHash(ctx, "first")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = repo.GetUserByResetTokenHash(ctx, "second")
	assert.NoError(t, err)
}

func TestResetPassword(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewVerifiedUser(t, repo, "ivan@example.com")
	require.NoError(t, repo.SetPasswordResetToken(ctx, user.ID, "reset-hash", time.Now().Add(time.Hour)))

	err := repo.ResetPassword(ctx, user.ID, "reset-hash", "$2a$10$newhash")
	require.NoError(t, err)

	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$newhash", updated.PasswordHash)
	assert.Nil(t, updated.ResetPasswordTokenHash)
	assert.Nil(t, updated.ResetPasswordExpiresAt)
}

func TestResetPassword_StaleToken(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewVerifiedUser(t, repo, "judy@example.com")
	require.NoError(t, repo.SetPasswordResetToken(ctx, user.ID, "reset-hash", time.Now().Add(time.Hour)))
	require.NoError(t, repo.ResetPassword(ctx, user.ID, "reset-hash", "$2a$10$first"))

	err := repo.ResetPassword(ctx, user.ID, "reset-hash", "$2a$10$second")

	assert.ErrorIs(t, err, repository.ErrStaleToken)
	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$first", updated.PasswordHash)
}

func TestDeleteExpiredResetTokens(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()
	expired := testutil.NewVerifiedUser(t, repo, "old@example.com")
	fresh := testutil.NewVerifiedUser(t, repo, "fresh@example.com")
	require.NoError(t, repo.SetPasswordResetToken(ctx, expired.ID, "expired", now.Add(-time.Hour)))
	require.NoError(t, repo.SetPasswordResetToken(ctx, fresh.ID, "fresh", now.Add(time.Hour)))

	n, err := repo.DeleteExpiredResetTokens(ctx, now)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.GetUserByResetTokenHash(ctx, "fresh")
	assert.NoError(t, err)
}
