// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"encoding/binary"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Role is the access level of a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is an account that owns identified products.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID                    int64      `db:"id" json:"id"`
	Username              string     `db:"username" json:"username"`
	Email                 string     `db:"email" json:"email"`
	PasswordHash          string     `db:"password_hash" json:"-"`
	IsVerified            bool       `db:"is_verified" json:"is_verified"`
	VerificationTokenHash *string    `db:"verification_token_hash" json:"-"`
	ResetTokenHash        *string    `db:"reset_token_hash" json:"-"`
	ResetExpiresAt        *time.Time `db:"reset_expires_at" json:"-"`
	Role                  Role       `db:"role" json:"role"`
	ProfilePicture        string     `db:"profile_picture" json:"profile_picture,omitempty"`
	OAuthProvider         string     `db:"oauth_provider" json:"-"`
	OAuthSubject          string     `db:"oauth_subject" json:"-"`
	DeletedAt             *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`

	Credentials []Credential `db:"-" json:"-"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsDeleted reports whether the account has been soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// WebAuthnID returns the user ID as big-endian bytes.
func (u *User) WebAuthnID() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(u.ID)) //nolint:gosec // IDs are positive
	return buf
}

// WebAuthnName returns the username.
func (u *User) WebAuthnName() string {
	return u.Username
}

// WebAuthnDisplayName returns the username.
func (u *User) WebAuthnDisplayName() string {
	return u.Username
}

// WebAuthnCredentials returns the passkeys loaded for the user.
func (u *User) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.Credentials))
	for i := range u.Credentials {
		creds[i] = u.Credentials[i].ToWebAuthn()
	}
	return creds
}
