// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Credential stores a passkey registered to a user.
type Credential struct { //nolint:govet // fieldalignment not critical for models
	ID              int64      `db:"id" json:"id"`
	UserID          int64      `db:"user_id" json:"-"`
	CredentialID    []byte     `db:"credential_id" json:"-"`
	PublicKey       []byte     `db:"public_key" json:"-"`
	AAGUID          []byte     `db:"aaguid" json:"-"`
	SignCount       uint32     `db:"sign_count" json:"-"`
	Transports      string     `db:"transports" json:"-"` // comma-separated
	Name            string     `db:"name" json:"name"`
	BackupEligible  bool       `db:"backup_eligible" json:"-"`
	BackupState     bool       `db:"backup_state" json:"-"`
	AttestationType string     `db:"attestation_type" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	LastUsedAt      *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
}

// ToWebAuthn converts the stored credential to a webauthn.Credential.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	var transports []protocol.AuthenticatorTransport
	if c.Transports != "" {
		for t := range strings.SplitSeq(c.Transports, ",") {
			transports = append(transports, protocol.AuthenticatorTransport(t))
		}
	}
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			UserVerified:   true,
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}

// TransportsFromWebAuthn joins transports into the stored representation.
func TransportsFromWebAuthn(transports []protocol.AuthenticatorTransport) string {
	strs := make([]string, len(transports))
	for i, t := range transports {
		strs[i] = string(t)
	}
	return strings.Join(strs, ",")
}
