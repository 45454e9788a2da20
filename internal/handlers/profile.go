// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/productscan/internal/appcontext"
	"codeberg.org/oliverandrich/productscan/internal/imagedata"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"codeberg.org/oliverandrich/productscan/internal/services/auth"
	"codeberg.org/oliverandrich/productscan/internal/services/session"
	"codeberg.org/oliverandrich/productscan/internal/services/storage"
	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

// MaxPictureSize is the largest accepted profile picture.
const MaxPictureSize = 5 << 20

const pictureKeyPrefix = "avatars"

// ProfileHandlers contains the endpoints a user manages their account with.
type ProfileHandlers struct {
	repo     *repository.Repository
	accounts *auth.Service
	sessions *session.Manager
	media    media
}

// NewProfile creates a new ProfileHandlers instance.
func NewProfile(repo *repository.Repository, accounts *auth.Service, sessions *session.Manager, images storage.Store) *ProfileHandlers {
	return &ProfileHandlers{
		repo:     repo,
		accounts: accounts,
		sessions: sessions,
		media:    media{store: images},
	}
}

// Get returns the logged-in user.
func (h *ProfileHandlers) Get(c echo.Context) error {
	user := appcontext.From(c).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}
	return c.JSON(http.StatusOK, h.media.user(c.Request().Context(), user))
}

// ProfileRequest is the request body for a profile update. Empty fields
// are left unchanged.
type ProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Update changes username and email.
func (h *ProfileHandlers) Update(c echo.Context) error {
	current := appcontext.From(c).User
	if current == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}

	user, err := h.accounts.UpdateProfile(c.Request().Context(), current.ID, auth.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			return jsonError(c, http.StatusBadRequest, "Username already taken")
		case errors.Is(err, auth.ErrEmailInUse):
			return jsonError(c, http.StatusBadRequest, "Email already in use")
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidEmail):
			return jsonError(c, http.StatusBadRequest, err.Error())
		}
		return serverError(c, "update_profile_failed", err)
	}

	// The session carries the username.
	if user.Username != current.Username {
		cookie, err := h.sessions.Create(user.ID, user.Username)
		if err != nil {
			return serverError(c, "session_create_failed", err)
		}
		c.SetCookie(cookie)
	}

	return c.JSON(http.StatusOK, h.media.user(c.Request().Context(), user))
}

// UploadPicture stores a new profile picture and removes the previous one.
func (h *ProfileHandlers) UploadPicture(c echo.Context) error {
	user := appcontext.From(c).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	file, err := c.FormFile("picture")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "No file uploaded")
	}
	tooLarge := fmt.Sprintf("Profile picture must not exceed %s", humanize.IBytes(MaxPictureSize))
	if file.Size > MaxPictureSize {
		return jsonError(c, http.StatusBadRequest, tooLarge)
	}

	src, err := file.Open()
	if err != nil {
		return serverError(c, "open_upload_failed", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxPictureSize+1))
	if err != nil {
		return serverError(c, "read_upload_failed", err)
	}
	if len(data) > MaxPictureSize {
		return jsonError(c, http.StatusBadRequest, tooLarge)
	}
	if !imagedata.IsImage(data) {
		return jsonError(c, http.StatusBadRequest, "Only image files are allowed")
	}

	img := imagedata.Image{Data: data, MIMEType: http.DetectContentType(data)}
	key := storage.NewKey(pictureKeyPrefix, user.ID, img.Extension())

	ctx := c.Request().Context()
	if err := h.media.store.Put(ctx, key, img.MIMEType, img.Data); err != nil {
		return serverError(c, "store_picture_failed", err)
	}
	if err := h.repo.SetProfilePicture(ctx, user.ID, key); err != nil {
		h.media.remove(ctx, key)
		return serverError(c, "set_picture_failed", err)
	}
	h.media.remove(ctx, user.ProfilePicture)

	slog.Info("profile_picture_updated", "user_id", user.ID, "size", humanize.IBytes(uint64(len(data))))
	return c.JSON(http.StatusOK, map[string]string{
		"profile_picture": h.media.url(ctx, key),
	})
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword replaces the password after checking the current one.
func (h *ProfileHandlers) ChangePassword(c echo.Context) error {
	user := appcontext.From(c).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return jsonError(c, http.StatusBadRequest, "Current and new password required")
	}

	err := h.accounts.ChangePassword(c.Request().Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if handled, respErr := passwordError(c, err); handled {
			return respErr
		}
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return jsonError(c, http.StatusBadRequest, "Current password is incorrect")
		case errors.Is(err, auth.ErrUserNotFound):
			return jsonError(c, http.StatusNotFound, "User not found")
		}
		return serverError(c, "change_password_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// Delete removes the account with its products and images and logs out.
func (h *ProfileHandlers) Delete(c echo.Context) error {
	user := appcontext.From(c).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	ctx := c.Request().Context()
	products, err := h.repo.ListProductsByUser(ctx, user.ID)
	if err != nil {
		return serverError(c, "list_products_failed", err)
	}
	if err := h.repo.DeleteUser(ctx, user.ID); err != nil {
		return serverError(c, "delete_account_failed", err)
	}

	keys := []string{user.ProfilePicture}
	for _, p := range products {
		keys = append(keys, p.ImageURL)
	}
	h.media.remove(ctx, keys...)

	c.SetCookie(h.sessions.Clear())
	slog.Info("account_deleted", "user_id", user.ID)
	return c.JSON(http.StatusOK, map[string]string{"message": "Account deleted successfully"})
}
