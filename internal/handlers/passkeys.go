// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/productscan/internal/appcontext"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"codeberg.org/oliverandrich/productscan/internal/services/session"
	"codeberg.org/oliverandrich/productscan/internal/services/webauthn"
	gowebauthn "github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var errAccountDeactivated = errors.New("account deactivated")

// PasskeyHandlers contains the WebAuthn ceremonies and passkey management.
type PasskeyHandlers struct {
	repo     *repository.Repository
	webauthn *webauthn.Service
	sessions *session.Manager
}

// NewPasskeys creates a new PasskeyHandlers instance.
func NewPasskeys(repo *repository.Repository, wa *webauthn.Service, sess *session.Manager) *PasskeyHandlers {
	return &PasskeyHandlers{
		repo:     repo,
		webauthn: wa,
		sessions: sess,
	}
}

// RegisterBegin starts adding a passkey to the logged-in account.
func (h *PasskeyHandlers) RegisterBegin(c echo.Context) error {
	current := appcontext.From(c).User
	if current == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	user, err := h.repo.GetUserWithCredentials(c.Request().Context(), current.ID)
	if err != nil {
		return serverError(c, "get_user_credentials_failed", err)
	}

	options, sessionData, err := h.webauthn.WebAuthn().BeginRegistration(user, webauthn.RegistrationOptions(user)...)
	if err != nil {
		return serverError(c, "passkey_register_begin_failed", err)
	}
	h.webauthn.StoreRegistrationSession(user.ID, sessionData)
	slog.Debug("passkey_register_started", "user_id", user.ID, "pending", h.webauthn.PendingCount())

	return c.JSON(http.StatusOK, map[string]any{
		"publicKey": options.Response,
	})
}

// RegisterFinish verifies the attestation and stores the passkey. The
// optional name query parameter labels it.
func (h *PasskeyHandlers) RegisterFinish(c echo.Context) error {
	current := appcontext.From(c).User
	if current == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	sessionData, err := h.webauthn.GetRegistrationSession(current.ID)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "Registration session expired")
	}

	ctx := c.Request().Context()
	user, err := h.repo.GetUserWithCredentials(ctx, current.ID)
	if err != nil {
		return serverError(c, "get_user_credentials_failed", err)
	}

	credential, err := h.webauthn.WebAuthn().FinishRegistration(user, *sessionData, c.Request())
	if err != nil {
		slog.Warn("passkey_register_failed", "user_id", user.ID, "error", err)
		return jsonError(c, http.StatusBadRequest, "Passkey registration failed")
	}

	cred := webauthn.NewCredential(user.ID, strings.TrimSpace(c.QueryParam("name")), credential)
	if err := h.repo.CreateCredential(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return jsonError(c, http.StatusBadRequest, "Passkey already registered")
		}
		return serverError(c, "store_credential_failed", err)
	}

	slog.Info("passkey_registered", "user_id", user.ID, "credential_id", cred.ID)
	return c.JSON(http.StatusCreated, cred)
}

// LoginBegin starts a usernameless passkey login.
func (h *PasskeyHandlers) LoginBegin(c echo.Context) error {
	options, sessionData, err := h.webauthn.WebAuthn().BeginDiscoverableLogin()
	if err != nil {
		return serverError(c, "passkey_login_begin_failed", err)
	}

	sessionID := uuid.NewString()
	h.webauthn.StoreDiscoverableSession(sessionID, sessionData)
	slog.Debug("passkey_login_started", "pending", h.webauthn.PendingCount())

	return c.JSON(http.StatusOK, map[string]any{
		"publicKey":  options.Response,
		"session_id": sessionID,
	})
}

// LoginFinish verifies the assertion and starts a session for the owner of
// the passkey.
func (h *PasskeyHandlers) LoginFinish(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	if sessionID == "" {
		return jsonError(c, http.StatusBadRequest, "session_id is required")
	}

	sessionData, err := h.webauthn.GetDiscoverableSession(sessionID)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "Login session expired")
	}

	ctx := c.Request().Context()
	var found *models.User
	credential, err := h.webauthn.WebAuthn().FinishDiscoverableLogin(
		func(_, userHandle []byte) (gowebauthn.User, error) {
			userID, handleErr := webauthn.UserIDFromHandle(userHandle)
			if handleErr != nil {
				return nil, handleErr
			}
			user, userErr := h.repo.GetUserWithCredentials(ctx, userID)
			if userErr != nil {
				return nil, userErr
			}
			if user.IsDeleted() {
				return nil, errAccountDeactivated
			}
			found = user
			return user, nil
		},
		*sessionData,
		c.Request(),
	)
	if err != nil || found == nil {
		slog.Info("passkey_login_failed", "error", err)
		return jsonError(c, http.StatusUnauthorized, "Passkey login failed")
	}

	if err := h.repo.UpdateCredentialSignCount(ctx, credential.ID, credential.Authenticator.SignCount); err != nil {
		slog.Warn("sign_count_update_failed", "user_id", found.ID, "error", err)
	}

	cookie, err := h.sessions.Create(found.ID, found.Username)
	if err != nil {
		return serverError(c, "session_create_failed", err)
	}
	c.SetCookie(cookie)

	slog.Info("login_success", "user_id", found.ID, "provider", "passkey")
	return c.JSON(http.StatusOK, found)
}

// List returns the passkeys of the logged-in user.
func (h *PasskeyHandlers) List(c echo.Context) error {
	user := appcontext.From(c).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	creds, err := h.repo.GetCredentialsByUserID(c.Request().Context(), user.ID)
	if err != nil {
		return serverError(c, "list_credentials_failed", err)
	}
	return c.JSON(http.StatusOK, creds)
}

// Delete removes one of the logged-in user's passkeys.
func (h *PasskeyHandlers) Delete(c echo.Context) error {
	user := appcontext.From(c).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Invalid passkey ID")
	}

	if err := h.repo.DeleteCredential(c.Request().Context(), id, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "Passkey not found")
		}
		return serverError(c, "delete_credential_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
