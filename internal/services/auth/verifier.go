// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Credentials carries what a Verifier needs. Password login uses Username
// and Password; OAuth uses Code.
type Credentials struct {
	Username string
	Password string
	Code     string
}

// Verifier turns credentials into the user they belong to.
type Verifier interface {
	Verify(ctx context.Context, creds Credentials) (*models.User, error)
}

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// PasswordVerifier checks a username and bcrypt password.
type PasswordVerifier struct {
	repo                *repository.Repository
	requireVerification bool
}

var _ Verifier = (*PasswordVerifier)(nil)

func (v *PasswordVerifier) Verify(ctx context.Context, creds Credentials) (*models.User, error) {
	user, err := v.repo.GetUserByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
			slog.Warn("login_failed", "username", creds.Username, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		slog.Warn("login_failed", "username", creds.Username, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if user.IsDeleted() {
		slog.Warn("login_failed", "username", creds.Username, "reason", "deactivated")
		return nil, ErrInvalidCredentials
	}

	if v.requireVerification && !user.IsVerified {
		slog.Warn("login_failed", "username", creds.Username, "reason", "not_verified")
		return nil, ErrEmailNotVerified
	}

	slog.Info("login_success", "user_id", user.ID, "username", user.Username)
	return user, nil
}
