// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package webauthn runs passkey ceremonies and keeps their pending state.
package webauthn

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/config"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

const sessionTTL = 2 * time.Minute

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidHandle   = errors.New("invalid user handle")
)

// Service wraps the relying party and its pending ceremonies.
type Service struct {
	wa       *webauthn.WebAuthn
	sessions *sessionStore
}

// NewService creates a new WebAuthn service.
func NewService(cfg *config.WebAuthnConfig) (*Service, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPDisplayName,
		RPID:          cfg.RPID,
		RPOrigins:     []string{cfg.RPOrigin},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure webauthn: %w", err)
	}

	return &Service{
		wa:       wa,
		sessions: newSessionStore(),
	}, nil
}

// Close stops the background cleanup of expired ceremonies.
func (s *Service) Close() {
	s.sessions.close()
}

// WebAuthn returns the underlying webauthn.WebAuthn instance.
func (s *Service) WebAuthn() *webauthn.WebAuthn {
	return s.wa
}

// RegistrationOptions asks for a discoverable credential and excludes the
// passkeys the user already has.
func RegistrationOptions(user *models.User) []webauthn.RegistrationOption {
	exclusions := make([]protocol.CredentialDescriptor, 0, len(user.Credentials))
	for _, c := range user.WebAuthnCredentials() {
		exclusions = append(exclusions, c.Descriptor())
	}
	return []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
		webauthn.WithExclusions(exclusions),
	}
}

// NewCredential converts a verified credential into the stored model.
func NewCredential(userID int64, name string, cred *webauthn.Credential) *models.Credential {
	if name == "" {
		name = "Passkey"
	}
	return &models.Credential{
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		Transports:      models.TransportsFromWebAuthn(cred.Transport),
		Name:            name,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
		AttestationType: cred.AttestationType,
	}
}

// UserIDFromHandle decodes the user handle set at registration.
func UserIDFromHandle(handle []byte) (int64, error) {
	if len(handle) != 8 {
		return 0, ErrInvalidHandle
	}
	id := int64(binary.BigEndian.Uint64(handle)) //nolint:gosec // user IDs are always positive
	if id <= 0 {
		return 0, ErrInvalidHandle
	}
	return id, nil
}

// StoreRegistrationSession stores a registration session for a user.
func (s *Service) StoreRegistrationSession(userID int64, data *webauthn.SessionData) {
	s.sessions.store(registrationKey(userID), data)
}

// GetRegistrationSession retrieves and removes a registration session.
func (s *Service) GetRegistrationSession(userID int64) (*webauthn.SessionData, error) {
	return s.sessions.get(registrationKey(userID))
}

// StoreDiscoverableSession stores a discoverable login session (usernameless).
func (s *Service) StoreDiscoverableSession(sessionID string, data *webauthn.SessionData) {
	s.sessions.store("discoverable:"+sessionID, data)
}

// GetDiscoverableSession retrieves and removes a discoverable login session.
func (s *Service) GetDiscoverableSession(sessionID string) (*webauthn.SessionData, error) {
	return s.sessions.get("discoverable:" + sessionID)
}

// PendingCount returns the number of unfinished ceremonies.
func (s *Service) PendingCount() int {
	return s.sessions.len()
}

func registrationKey(userID int64) string {
	return fmt.Sprintf("registration:%d", userID)
}

// sessionStore provides thread-safe session storage with TTL.
type sessionStore struct { //nolint:govet // fieldalignment not critical
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	done     chan struct{}
	once     sync.Once
}

type sessionEntry struct {
	data      *webauthn.SessionData
	expiresAt time.Time
}

func newSessionStore() *sessionStore {
	ss := &sessionStore{
		sessions: make(map[string]*sessionEntry),
		done:     make(chan struct{}),
	}
	go ss.cleanup()
	return ss
}

func (s *sessionStore) store(key string, data *webauthn.SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = &sessionEntry{
		data:      data,
		expiresAt: time.Now().Add(sessionTTL),
	}
}

func (s *sessionStore) get(key string) (*webauthn.SessionData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(s.sessions, key)

	if time.Now().After(entry.expiresAt) {
		return nil, ErrSessionExpired
	}
	return entry.data, nil
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *sessionStore) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *sessionStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for key, entry := range s.sessions {
				if now.After(entry.expiresAt) {
					delete(s.sessions, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
