// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth manages accounts: registration, credential verification,
// email verification and password resets.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/config"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters of letters, digits, dot, dash or underscore")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMailUnavailable    = errors.New("email delivery is not configured")
)

// ResetTokenExpiry is how long a password reset link stays valid.
const ResetTokenExpiry = time.Hour

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, toEmail, username, token string) error
	SendPasswordReset(ctx context.Context, toEmail, username, token string) error
}

type Service struct {
	repo              *repository.Repository
	config            *config.AuthConfig
	mailer            Mailer
	passwordValidator *PasswordValidator
	passwords         *PasswordVerifier
	now               func() time.Time
}

// NewService creates the account service. mailer may be nil when SMTP is
// not configured; verification is then skipped.
func NewService(repo *repository.Repository, cfg *config.AuthConfig, mailer Mailer) *Service {
	s := &Service{
		repo:              repo,
		config:            cfg,
		mailer:            mailer,
		passwordValidator: DefaultPasswordValidator(),
		now:               time.Now,
	}
	s.passwords = &PasswordVerifier{repo: repo, requireVerification: s.RequiresVerification()}
	return s
}

// RequiresVerification reports whether new accounts must confirm their email.
func (s *Service) RequiresVerification() bool {
	return s.config.RequireVerification && s.mailer != nil
}

// RegisterParams holds the parameters for user registration
type RegisterParams struct {
	Username string
	Email    string
	Password string
}

func (s *Service) validatePassword(password string, attrs ...string) error {
	if result := s.passwordValidator.Validate(password, attrs...); !result.Valid {
		return &PasswordValidationError{Errors: result.Errors}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func validateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return "", ErrInvalidUsername
	}
	return username, nil
}

// Register creates a new account. When verification is required the user
// is created unverified and a verification email is sent; a failed send is
// logged and does not fail the registration.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	username, err := validateUsername(params.Username)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	if err := s.validatePassword(params.Password, username, email); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, 0, username, email); err != nil {
		return nil, err
	}

	passwordHash, err := hashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		IsVerified:   !s.RequiresVerification(),
	}

	var token string
	if s.RequiresVerification() {
		plain, hash, err := NewToken()
		if err != nil {
			return nil, err
		}
		token = plain
		user.VerificationTokenHash = &hash
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "username", user.Username, "verified", user.IsVerified)

	if token != "" {
		if err := s.mailer.SendVerification(ctx, user.Email, user.Username, token); err != nil {
			slog.Error("verification_email_failed", "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

// ensureAvailable checks that username and email are not used by another account.
func (s *Service) ensureAvailable(ctx context.Context, selfID int64, username, email string) error {
	if username != "" {
		existing, err := s.repo.GetUserByUsername(ctx, username)
		if err == nil && existing.ID != selfID {
			return ErrUserExists
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check username: %w", err)
		}
	}
	if email != "" {
		existing, err := s.repo.GetUserByEmail(ctx, email)
		if err == nil && existing.ID != selfID {
			return ErrEmailInUse
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}
	}
	return nil
}

// VerifyEmail consumes a verification token and marks its owner verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.GetUserByVerificationToken(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if user.IsDeleted() {
		return nil, ErrInvalidToken
	}

	if err := s.repo.MarkUserVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}
	user.IsVerified = true
	user.VerificationTokenHash = nil

	slog.Info("email_verified", "user_id", user.ID)
	return user, nil
}

// Login authenticates a user by username and password.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	return s.passwords.Verify(ctx, Credentials{Username: username, Password: password})
}

// RequestPasswordReset emails a reset link when email belongs to an active
// account. Unknown addresses succeed silently.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("reset_requested_unknown_email")
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user.IsDeleted() {
		return nil
	}
	if s.mailer == nil {
		return ErrMailUnavailable
	}

	plain, hash, err := NewToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetResetToken(ctx, user.ID, hash, s.now().Add(ResetTokenExpiry)); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Username, plain); err != nil {
		slog.Error("reset_email_failed", "user_id", user.ID, "error", err)
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	slog.Info("reset_requested", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password for the owner of a valid reset token and
// clears the token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return ErrInvalidToken
	}

	user, err := s.repo.GetUserByResetToken(ctx, HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to look up token: %w", err)
	}
	if user.IsDeleted() {
		return ErrInvalidToken
	}

	if err := s.validatePassword(password, user.Username, user.Email); err != nil {
		return err
	}

	passwordHash, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.ResetPassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}

	slog.Info("password_reset", "user_id", user.ID)
	return nil
}

// ChangePassword changes a user's password (when they know their current password)
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	if err := s.validatePassword(newPassword, user.Username, user.Email); err != nil {
		return err
	}

	passwordHash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateUserPassword(ctx, userID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password_changed", "user_id", userID)
	return nil
}

// ProfileUpdate holds optional profile changes; empty fields stay unchanged.
type ProfileUpdate struct {
	Username string
	Email    string
}

// UpdateProfile changes username and/or email of a user.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	username, email := user.Username, user.Email
	if update.Username != "" {
		if username, err = validateUsername(update.Username); err != nil {
			return nil, err
		}
	}
	if update.Email != "" {
		if email, err = normalizeEmail(update.Email); err != nil {
			return nil, err
		}
	}

	if err := s.ensureAvailable(ctx, userID, username, email); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateUserProfile(ctx, userID, username, email); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user.Username, user.Email = username, email
	return user, nil
}

// Promote grants the admin role to the user with the given username.
func (s *Service) Promote(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := s.repo.SetUserRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	user.Role = models.RoleAdmin
	return user, nil
}
