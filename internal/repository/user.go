// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/models"
)

const userColumns = `id, username, email, password_hash, is_verified, verification_token_hash,
	reset_token_hash, reset_expires_at, role, profile_picture, oauth_provider, oauth_subject,
	deleted_at, created_at, updated_at`

// CreateUser inserts a new user and fills in its ID and timestamps.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, is_verified, verification_token_hash,
			role, oauth_provider, oauth_subject, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.IsVerified, user.VerificationTokenHash,
		user.Role, user.OAuthProvider, user.OAuthSubject, now, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", wrapError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (r *Repository) getUser(ctx context.Context, where string, args ...any) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID, including soft-deleted accounts.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, `id = ?`, id)
}

// GetUserByUsername retrieves a user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, `username = ?`, username)
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `email = ?`, email)
}

// GetUserByOAuth retrieves a user linked to an external identity.
func (r *Repository) GetUserByOAuth(ctx context.Context, provider, subject string) (*models.User, error) {
	return r.getUser(ctx, `oauth_provider = ? AND oauth_subject = ?`, provider, subject)
}

// GetUserByVerificationToken retrieves the user holding a pending verification token.
func (r *Repository) GetUserByVerificationToken(ctx context.Context, tokenHash string) (*models.User, error) {
	return r.getUser(ctx, `verification_token_hash = ?`, tokenHash)
}

// GetUserByResetToken retrieves the user holding an unexpired reset token.
func (r *Repository) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return r.getUser(ctx, `reset_token_hash = ? AND reset_expires_at > ?`, tokenHash, now.UTC())
}

// ListUsers returns users ordered by ID. Soft-deleted accounts are included
// only when includeDeleted is set.
func (r *Repository) ListUsers(ctx context.Context, includeDeleted bool) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY id`

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUserProfile changes username and email.
func (r *Repository) UpdateUserProfile(ctx context.Context, id int64, username, email string) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, updated_at = ? WHERE id = ?`,
		username, email, time.Now().UTC(), id))
}

// UpdateUserPassword replaces the password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id))
}

// SetVerificationToken stores a pending verification token and marks the user unverified.
func (r *Repository) SetVerificationToken(ctx context.Context, id int64, tokenHash string) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET verification_token_hash = ?, is_verified = 0, updated_at = ? WHERE id = ?`,
		tokenHash, time.Now().UTC(), id))
}

// MarkUserVerified consumes the verification token.
func (r *Repository) MarkUserVerified(ctx context.Context, id int64) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET is_verified = 1, verification_token_hash = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id))
}

// SetResetToken stores a reset token, replacing any previous one.
func (r *Repository) SetResetToken(ctx context.Context, id int64, tokenHash string, expiresAt time.Time) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET reset_token_hash = ?, reset_expires_at = ?, updated_at = ? WHERE id = ?`,
		tokenHash, expiresAt.UTC(), time.Now().UTC(), id))
}

// ResetPassword sets a new password hash and clears the reset token.
func (r *Repository) ResetPassword(ctx context.Context, id int64, passwordHash string) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = ?
		WHERE id = ?`,
		passwordHash, time.Now().UTC(), id))
}

// SetUserRole changes the role of a user.
func (r *Repository) SetUserRole(ctx context.Context, id int64, role models.Role) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		role, time.Now().UTC(), id))
}

// SetProfilePicture stores the storage key of the profile picture.
func (r *Repository) SetProfilePicture(ctx context.Context, id int64, key string) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET profile_picture = ?, updated_at = ? WHERE id = ?`,
		key, time.Now().UTC(), id))
}

// SoftDeleteUser flags a user as deleted without removing any rows.
func (r *Repository) SoftDeleteUser(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id))
}

// RestoreUser clears the soft-delete flag.
func (r *Repository) RestoreUser(ctx context.Context, id int64) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE users SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`,
		time.Now().UTC(), id))
}

// DeleteUser removes a user. Products and passkeys go with it.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	return requireAffected(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id))
}

// CountUsers returns the number of active users.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM users WHERE deleted_at IS NULL`)
	return count, err
}

// CountVerifiedUsers returns the number of active, verified users.
func (r *Repository) CountVerifiedUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT count(*) FROM users WHERE deleted_at IS NULL AND is_verified = 1`)
	return count, err
}

// CountAdmins returns the number of active admins.
func (r *Repository) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT count(*) FROM users WHERE deleted_at IS NULL AND role = ?`, models.RoleAdmin)
	return count, err
}
