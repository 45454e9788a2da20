// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session encodes the caller identity into a signed cookie.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/config"
	"github.com/gorilla/securecookie"
)

const keyLength = 32

// Data is the payload stored in the session cookie.
type Data struct {
	UserID    int64     `json:"uid,omitempty"`
	Username  string    `json:"usr,omitempty"`
	Guest     bool      `json:"guest,omitempty"`
	CreatedAt time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// Identity converts the cookie payload into the caller identity. User
// existence is not checked here.
func (d *Data) Identity() Identity {
	switch {
	case d == nil:
		return Anonymous()
	case d.UserID > 0:
		return Authenticated(d.UserID)
	case d.Guest:
		return Guest(d.CreatedAt)
	default:
		return Anonymous()
	}
}

// Manager creates and validates session cookies.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
}

// NewManager builds a Manager from cfg. An empty hash key is replaced by a
// random one, which invalidates all sessions on restart.
func NewManager(cfg *config.SessionConfig, secure bool) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		hashKey = securecookie.GenerateRandomKey(keyLength)
		if hashKey == nil {
			return nil, errors.New("failed to generate session hash key")
		}
		slog.Warn("session hash key not configured, generated a random key")
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		codec:  codec,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: secure,
	}, nil
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be %d bytes, got %d", kind, keyLength, len(key))
	}
	return key, nil
}

// Create returns a cookie for an authenticated user.
func (m *Manager) Create(userID int64, username string) (*http.Cookie, error) {
	cookie, _, err := m.encode(Data{UserID: userID, Username: username})
	return cookie, err
}

// CreateGuest returns a cookie marking the caller as a guest, together with
// the payload encoded into it.
func (m *Manager) CreateGuest() (*http.Cookie, *Data, error) {
	return m.encode(Data{Guest: true})
}

func (m *Manager) encode(data Data) (*http.Cookie, *Data, error) {
	now := time.Now().UTC()
	data.CreatedAt = now
	data.ExpiresAt = now.Add(time.Duration(m.maxAge) * time.Second)

	value, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return m.cookie(value, m.maxAge), &data, nil
}

// Parse reads the session from r. Missing, invalid or expired cookies
// yield (nil, nil).
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return nil, nil //nolint:nilerr // no cookie means no session
	}

	var data Data
	if err := m.codec.Decode(m.name, cookie.Value, &data); err != nil {
		return nil, nil //nolint:nilerr // tampered or stale cookies are ignored
	}
	if !data.ExpiresAt.IsZero() && time.Now().After(data.ExpiresAt) {
		return nil, nil
	}
	return &data, nil
}

// Clear returns a cookie that deletes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// RandomKey returns a hex encoded key suitable for the session config.
func RandomKey() (string, error) {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
