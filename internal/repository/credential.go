// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/models"
)

const credentialColumns = `id, user_id, credential_id, public_key, aaguid, sign_count, transports,
	name, backup_eligible, backup_state, attestation_type, created_at, last_used_at`

// CreateCredential stores a new passkey.
func (r *Repository) CreateCredential(ctx context.Context, cred *models.Credential) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, credential_id, public_key, aaguid, sign_count, transports,
			name, backup_eligible, backup_state, attestation_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cred.UserID, cred.CredentialID, cred.PublicKey, cred.AAGUID, cred.SignCount, cred.Transports,
		cred.Name, cred.BackupEligible, cred.BackupState, cred.AttestationType, now)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", wrapError(err))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read credential id: %w", err)
	}
	cred.ID = id
	cred.CreatedAt = now
	return nil
}

// GetCredentialsByUserID retrieves all passkeys of a user.
func (r *Repository) GetCredentialsByUserID(ctx context.Context, userID int64) ([]models.Credential, error) {
	creds := []models.Credential{}
	err := r.db.SelectContext(ctx, &creds,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// GetUserWithCredentials loads a user together with their passkeys.
func (r *Repository) GetUserWithCredentials(ctx context.Context, userID int64) (*models.User, error) {
	user, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	creds, err := r.GetCredentialsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Credentials = creds
	return user, nil
}

// UpdateCredentialSignCount records a successful assertion.
func (r *Repository) UpdateCredentialSignCount(ctx context.Context, credentialID []byte, signCount uint32) error {
	return requireAffected(r.db.ExecContext(ctx,
		`UPDATE credentials SET sign_count = ?, last_used_at = ? WHERE credential_id = ?`,
		signCount, time.Now().UTC(), credentialID))
}

// DeleteCredential deletes a passkey, ensuring it belongs to the given user.
func (r *Repository) DeleteCredential(ctx context.Context, id, userID int64) error {
	return requireAffected(r.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE id = ? AND user_id = ?`, id, userID))
}
