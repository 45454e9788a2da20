// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/productscan/internal/database"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of users created by NewTestUser.
const TestPassword = "correct-horse-battery"

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestUser creates a verified user whose password is TestPassword.
func NewTestUser(t *testing.T, repo *repository.Repository, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		IsVerified:   true,
		Role:         models.RoleUser,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewTestAdmin creates a verified admin user.
func NewTestAdmin(t *testing.T, repo *repository.Repository, username string) *models.User {
	t.Helper()
	user := NewTestUser(t, repo, username)
	require.NoError(t, repo.SetUserRole(context.Background(), user.ID, models.RoleAdmin))
	user.Role = models.RoleAdmin
	return user
}

// NewTestProduct creates a product owned by userID.
func NewTestProduct(t *testing.T, repo *repository.Repository, userID int64, name, brand string) *models.Product {
	t.Helper()
	p := &models.Product{
		UserID:      userID,
		Name:        name,
		Description: "Description of " + name,
		Brand:       brand,
		Category:    "Electronics",
		Metadata:    models.Metadata{"classifier": "llm"},
	}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

// NewTestCredential creates a test passkey for a user.
func NewTestCredential(t *testing.T, repo *repository.Repository, userID int64, name string) *models.Credential {
	t.Helper()
	cred := &models.Credential{
		UserID:       userID,
		CredentialID: []byte("test-credential-id-" + name),
		PublicKey:    []byte("test-public-key"),
		AAGUID:       []byte("test-aaguid-1234"),
		Name:         name,
	}
	require.NoError(t, repo.CreateCredential(context.Background(), cred))
	return cred
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
