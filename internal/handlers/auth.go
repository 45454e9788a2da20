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
	"codeberg.org/oliverandrich/productscan/internal/services/auth"
	"codeberg.org/oliverandrich/productscan/internal/services/session"
	"codeberg.org/oliverandrich/productscan/internal/services/storage"
	"github.com/labstack/echo/v4"
)

const (
	oauthStateCookie = "_oauth_state"
	oauthCallback    = "/api/auth/github"

	msgResetRequested = "If your email is registered, you will receive a reset link"
)

// AuthHandlers contains handlers for accounts, sessions and password resets.
type AuthHandlers struct {
	accounts *auth.Service
	sessions *session.Manager
	github   *auth.OAuthVerifier // nil when GitHub login is not configured
	media    media
}

// NewAuth creates a new AuthHandlers instance. github may be nil.
func NewAuth(accounts *auth.Service, sessions *session.Manager, github *auth.OAuthVerifier, images storage.Store) *AuthHandlers {
	return &AuthHandlers{
		accounts: accounts,
		sessions: sessions,
		github:   github,
		media:    media{store: images},
	}
}

// startSession sets a fresh session cookie for user, replacing any guest marker.
func (h *AuthHandlers) startSession(c echo.Context, user *models.User) error {
	cookie, err := h.sessions.Create(user.ID, user.Username)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)
	return nil
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. Without pending verification the caller is
// logged in right away.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return jsonError(c, http.StatusBadRequest, "Username, email and password are required")
	}

	user, err := h.accounts.Register(c.Request().Context(), auth.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if handled, respErr := passwordError(c, err); handled {
			return respErr
		}
		switch {
		case errors.Is(err, auth.ErrUserExists):
			return jsonError(c, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, auth.ErrEmailInUse):
			return jsonError(c, http.StatusBadRequest, "Email already in use")
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidEmail):
			return jsonError(c, http.StatusBadRequest, err.Error())
		}
		return serverError(c, "register_failed", err)
	}

	message := "Registration successful. Please check your email to verify your account."
	if user.IsVerified {
		if err := h.startSession(c, user); err != nil {
			return serverError(c, "session_create_failed", err)
		}
		message = "Registration successful"
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": message,
		"user":    h.media.user(c.Request().Context(), user),
	})
}

// VerifyEmail consumes the emailed token, logs the user in and redirects
// to the login screen.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return jsonError(c, http.StatusBadRequest, "Verification token is required")
	}

	user, err := h.accounts.VerifyEmail(c.Request().Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return jsonError(c, http.StatusNotFound, "Verification token not found or already used")
		}
		return serverError(c, "verify_email_failed", err)
	}

	if err := h.startSession(c, user); err != nil {
		return serverError(c, "session_create_failed", err)
	}
	return c.Redirect(http.StatusFound, "/auth?verified=true")
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks username and password and starts a session.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return jsonError(c, http.StatusBadRequest, "Username and password are required")
	}

	user, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			slog.Info("login_failed", "username", req.Username)
			return jsonError(c, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, auth.ErrEmailNotVerified):
			slog.Info("login_unverified", "username", req.Username)
			return jsonError(c, http.StatusForbidden, "Email not verified")
		}
		return serverError(c, "login_error", err)
	}

	if err := h.startSession(c, user); err != nil {
		return serverError(c, "session_create_failed", err)
	}
	slog.Info("login_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, h.media.user(c.Request().Context(), user))
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// User returns the logged-in user.
func (h *AuthHandlers) User(c echo.Context) error {
	cc := appcontext.From(c)
	if !cc.IsAuthenticated() {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}
	return c.JSON(http.StatusOK, h.media.user(c.Request().Context(), cc.User))
}

// Guest starts a guest session whose scans are never saved.
func (h *AuthHandlers) Guest(c echo.Context) error {
	if appcontext.From(c).IsAuthenticated() {
		return jsonError(c, http.StatusConflict, "Already logged in")
	}

	cookie, data, err := h.sessions.CreateGuest()
	if err != nil {
		return serverError(c, "session_create_failed", err)
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, map[string]any{
		"guest":      true,
		"created_at": data.CreatedAt,
	})
}

// GitHubLogin redirects to GitHub. The signed state is bound to a
// short-lived cookie holding its nonce.
func (h *AuthHandlers) GitHubLogin(c echo.Context) error {
	if h.github == nil {
		return jsonError(c, http.StatusNotFound, "GitHub login is not configured")
	}

	state, nonce, err := h.github.NewState()
	if err != nil {
		return serverError(c, "oauth_state_failed", err)
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    nonce,
		Path:     oauthCallback,
		MaxAge:   int(h.github.StateExpiry().Seconds()),
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.github.AuthCodeURL(state))
}

// GitHubCallback finishes the OAuth flow and logs the user in.
func (h *AuthHandlers) GitHubCallback(c echo.Context) error {
	if h.github == nil {
		return jsonError(c, http.StatusNotFound, "GitHub login is not configured")
	}

	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Path:     oauthCallback,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	nonce := ""
	if cookie, err := c.Cookie(oauthStateCookie); err == nil {
		nonce = cookie.Value
	}
	if err := h.github.ValidateState(c.QueryParam("state"), nonce); err != nil {
		slog.Warn("oauth_state_invalid", "error", err)
		return c.Redirect(http.StatusFound, "/auth?error=oauth")
	}

	code := c.QueryParam("code")
	if code == "" {
		return c.Redirect(http.StatusFound, "/auth?error=oauth")
	}

	user, err := h.github.Verify(c.Request().Context(), auth.Credentials{Code: code})
	if err != nil {
		slog.Warn("oauth_login_failed", "error", err)
		return c.Redirect(http.StatusFound, "/auth?error=oauth")
	}

	if err := h.startSession(c, user); err != nil {
		return serverError(c, "session_create_failed", err)
	}
	slog.Info("login_success", "user_id", user.ID, "provider", auth.ProviderGitHub)
	return c.Redirect(http.StatusFound, "/")
}

// ResetRequest is the request body for requesting a password reset.
type ResetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset emails a reset link. The answer does not reveal
// whether the address is registered.
func (h *AuthHandlers) RequestPasswordReset(c echo.Context) error {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" {
		return jsonError(c, http.StatusBadRequest, "Email is required")
	}

	if err := h.accounts.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		slog.Error("reset_request_failed", "error", err)
		return jsonError(c, http.StatusInternalServerError, "Failed to send reset email")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": msgResetRequested})
}

// ResetPasswordRequest is the request body for setting a new password.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword sets a new password using a reset token.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Token == "" || req.Password == "" {
		return jsonError(c, http.StatusBadRequest, "Token and password are required")
	}

	if err := h.accounts.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		if handled, respErr := passwordError(c, err); handled {
			return respErr
		}
		if errors.Is(err, auth.ErrInvalidToken) {
			return jsonError(c, http.StatusNotFound, "Invalid or expired reset token")
		}
		return serverError(c, "reset_password_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset successful"})
}
