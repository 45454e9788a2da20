// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"codeberg.org/oliverandrich/productscan/internal/appcontext"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"codeberg.org/oliverandrich/productscan/internal/services/storage"
	"github.com/labstack/echo/v4"
)

const (
	msgInvalidUserID = "Invalid user ID"
	msgUserNotFound  = "User not found"
)

// AdminHandlers contains the user and product management endpoints.
type AdminHandlers struct {
	repo  *repository.Repository
	media media
}

// NewAdmin creates a new AdminHandlers instance.
func NewAdmin(repo *repository.Repository, images storage.Store) *AdminHandlers {
	return &AdminHandlers{repo: repo, media: media{store: images}}
}

// UserDetail is a user together with the products they own.
type UserDetail struct {
	*models.User
	Products []models.Product `json:"products"`
}

// Stats summarizes users and products.
type Stats struct {
	TotalUsers             int64                        `json:"total_users"`
	VerifiedUsers          int64                        `json:"verified_users"`
	TotalProducts          int64                        `json:"total_products"`
	MostActiveUser         *repository.UserProductCount `json:"most_active_user"`
	AverageProductsPerUser float64                      `json:"average_products_per_user"`
}

// isSelf reports whether id is the calling admin.
func isSelf(c echo.Context, id int64) bool {
	self := appcontext.From(c).User
	return self != nil && self.ID == id
}

// ListUsers returns all users; soft-deleted ones only with include_deleted.
func (h *AdminHandlers) ListUsers(c echo.Context) error {
	includeDeleted, _ := strconv.ParseBool(c.QueryParam("include_deleted"))

	ctx := c.Request().Context()
	users, err := h.repo.ListUsers(ctx, includeDeleted)
	if err != nil {
		return serverError(c, "list_users_failed", err)
	}
	return c.JSON(http.StatusOK, h.media.users(ctx, users))
}

// GetUser returns a user and their products.
func (h *AdminHandlers) GetUser(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, msgInvalidUserID)
	}

	ctx := c.Request().Context()
	user, err := h.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, msgUserNotFound)
		}
		return serverError(c, "get_user_failed", err)
	}
	products, err := h.repo.ListProductsByUser(ctx, id)
	if err != nil {
		return serverError(c, "list_products_failed", err)
	}

	return c.JSON(http.StatusOK, UserDetail{
		User:     h.media.user(ctx, user),
		Products: h.media.products(ctx, products),
	})
}

// RoleRequest is the request body for changing a role.
type RoleRequest struct {
	Role string `json:"role"`
}

// SetRole changes the role of a user. Admins cannot demote themselves.
func (h *AdminHandlers) SetRole(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, msgInvalidUserID)
	}

	var req RoleRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}
	role := models.Role(req.Role)
	if !role.Valid() {
		return jsonError(c, http.StatusBadRequest, "Invalid role")
	}
	if isSelf(c, id) && role != models.RoleAdmin {
		return jsonError(c, http.StatusBadRequest, "You cannot demote yourself")
	}

	ctx := c.Request().Context()
	if err := h.repo.SetUserRole(ctx, id, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, msgUserNotFound)
		}
		return serverError(c, "set_role_failed", err)
	}

	user, err := h.repo.GetUserByID(ctx, id)
	if err != nil {
		return serverError(c, "get_user_failed", err)
	}
	slog.Info("role_changed", "user_id", id, "role", role)
	return c.JSON(http.StatusOK, h.media.user(ctx, user))
}

// DeleteUser removes a user with their products and images.
func (h *AdminHandlers) DeleteUser(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, msgInvalidUserID)
	}
	if isSelf(c, id) {
		return jsonError(c, http.StatusBadRequest, "You cannot delete your own admin account")
	}

	ctx := c.Request().Context()
	user, err := h.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, msgUserNotFound)
		}
		return serverError(c, "get_user_failed", err)
	}
	products, err := h.repo.ListProductsByUser(ctx, id)
	if err != nil {
		return serverError(c, "list_products_failed", err)
	}
	if err := h.repo.DeleteUser(ctx, id); err != nil {
		return serverError(c, "delete_user_failed", err)
	}

	keys := []string{user.ProfilePicture}
	for _, p := range products {
		keys = append(keys, p.ImageURL)
	}
	h.media.remove(ctx, keys...)

	slog.Info("user_deleted", "user_id", id)
	return c.JSON(http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// DeactivateUser soft-deletes a user. Their data stays but they can no
// longer log in.
func (h *AdminHandlers) DeactivateUser(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, msgInvalidUserID)
	}
	if isSelf(c, id) {
		return jsonError(c, http.StatusBadRequest, "You cannot deactivate your own admin account")
	}

	if err := h.repo.SoftDeleteUser(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "User not found or already deactivated")
		}
		return serverError(c, "deactivate_user_failed", err)
	}

	slog.Info("user_deactivated", "user_id", id)
	return c.JSON(http.StatusOK, map[string]string{"message": "User deactivated"})
}

// RestoreUser reverts a soft delete.
func (h *AdminHandlers) RestoreUser(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, msgInvalidUserID)
	}
	if isSelf(c, id) {
		return jsonError(c, http.StatusBadRequest, "You cannot restore your own admin account")
	}

	if err := h.repo.RestoreUser(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "User not found or not deactivated")
		}
		return serverError(c, "restore_user_failed", err)
	}

	slog.Info("user_restored", "user_id", id)
	return c.JSON(http.StatusOK, map[string]string{"message": "User restored"})
}

// ListProducts returns every product, newest first.
func (h *AdminHandlers) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	products, err := h.repo.ListProducts(ctx)
	if err != nil {
		return serverError(c, "list_products_failed", err)
	}
	return c.JSON(http.StatusOK, h.media.products(ctx, products))
}

// DeleteProduct removes any product and its image.
func (h *AdminHandlers) DeleteProduct(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Invalid product ID")
	}

	ctx := c.Request().Context()
	product, err := h.repo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "Product not found")
		}
		return serverError(c, "get_product_failed", err)
	}
	if err := h.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "Product not found")
		}
		return serverError(c, "delete_product_failed", err)
	}
	h.media.remove(ctx, product.ImageURL)

	return c.NoContent(http.StatusNoContent)
}

// Stats returns user and product counts.
func (h *AdminHandlers) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		stats Stats
		err   error
	)
	if stats.TotalUsers, err = h.repo.CountUsers(ctx); err != nil {
		return serverError(c, "stats_failed", err)
	}
	if stats.VerifiedUsers, err = h.repo.CountVerifiedUsers(ctx); err != nil {
		return serverError(c, "stats_failed", err)
	}
	if stats.TotalProducts, err = h.repo.CountProducts(ctx); err != nil {
		return serverError(c, "stats_failed", err)
	}

	stats.MostActiveUser, err = h.repo.MostActiveUser(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return serverError(c, "stats_failed", err)
	}

	if stats.TotalUsers > 0 {
		avg := float64(stats.TotalProducts) / float64(stats.TotalUsers)
		stats.AverageProductsPerUser = math.Round(avg*100) / 100
	}

	return c.JSON(http.StatusOK, stats)
}
