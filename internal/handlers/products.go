// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/appcontext"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"codeberg.org/oliverandrich/productscan/internal/services/identify"
	"codeberg.org/oliverandrich/productscan/internal/services/storage"
	"github.com/labstack/echo/v4"
)

// ProductHandlers contains the product endpoints.
type ProductHandlers struct {
	repo     *repository.Repository
	identify *identify.Service
	media    media
}

// NewProducts creates a new ProductHandlers instance.
func NewProducts(repo *repository.Repository, svc *identify.Service, images storage.Store) *ProductHandlers {
	return &ProductHandlers{
		repo:     repo,
		identify: svc,
		media:    media{store: images},
	}
}

// IdentifyRequest is the request body for identifying a product.
type IdentifyRequest struct {
	Image string `json:"image"`
}

// TemporaryProduct is an identification result that was not saved. It has
// no ID and no owner.
type TemporaryProduct struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Brand          string          `json:"brand"`
	Category       string          `json:"category"`
	IdentifiedText string          `json:"identified_text"`
	Metadata       models.Metadata `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
	Temporary      bool            `json:"temporary"`
	Message        string          `json:"message"`
}

func newTemporaryProduct(r *identify.Result) TemporaryProduct {
	p := r.Product
	return TemporaryProduct{
		Name:           p.Name,
		Description:    p.Description,
		Brand:          p.Brand,
		Category:       p.Category,
		IdentifiedText: p.IdentifiedText,
		Metadata:       p.Metadata,
		CreatedAt:      p.CreatedAt,
		Temporary:      true,
		Message:        r.Message,
	}
}

// Identify runs OCR and classification on an uploaded image.
func (h *ProductHandlers) Identify(c echo.Context) error {
	cc := appcontext.From(c)

	var req IdentifyRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "Invalid request body")
	}

	result, err := h.identify.Identify(c.Request().Context(), cc.Identity, req.Image)
	switch {
	case err == nil:
	case errors.Is(err, identify.ErrNoImage):
		return jsonError(c, http.StatusBadRequest, "Image is required")
	case errors.Is(err, identify.ErrInvalidImage):
		return jsonError(c, http.StatusBadRequest, "Invalid image data")
	case errors.Is(err, identify.ErrUnauthorized):
		return jsonError(c, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, identify.ErrExtraction):
		return jsonError(c, http.StatusInternalServerError, "Failed to extract text from image")
	default:
		return serverError(c, "identify_failed", err)
	}

	if result.Temporary {
		return c.JSON(http.StatusOK, newTemporaryProduct(result))
	}
	return c.JSON(http.StatusOK, h.media.product(c.Request().Context(), result.Product))
}

// List returns the caller's products, newest first. Callers without an
// account get an empty list.
func (h *ProductHandlers) List(c echo.Context) error {
	cc := appcontext.From(c)
	if !cc.IsAuthenticated() {
		return c.JSON(http.StatusOK, []models.Product{})
	}

	ctx := c.Request().Context()
	products, err := h.repo.ListProductsByUser(ctx, cc.User.ID)
	if err != nil {
		return serverError(c, "list_products_failed", err)
	}
	return c.JSON(http.StatusOK, h.media.products(ctx, products))
}

// Search returns products whose name, description or brand contains q.
func (h *ProductHandlers) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return jsonError(c, http.StatusBadRequest, "Search query required")
	}

	ctx := c.Request().Context()
	products, err := h.repo.SearchProducts(ctx, q)
	if err != nil {
		return serverError(c, "search_products_failed", err)
	}
	return c.JSON(http.StatusOK, h.media.products(ctx, products))
}

// Delete removes one of the caller's products and its image.
func (h *ProductHandlers) Delete(c echo.Context) error {
	user := appcontext.From(c).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	id, ok := paramID(c, "id")
	if !ok {
		return jsonError(c, http.StatusBadRequest, "Invalid product ID")
	}

	ctx := c.Request().Context()
	product, err := h.repo.GetProductByID(ctx, id)
	if err != nil || product.UserID != user.ID {
		if err == nil || errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "Product not found")
		}
		return serverError(c, "get_product_failed", err)
	}

	if err := h.repo.DeleteUserProduct(ctx, id, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return jsonError(c, http.StatusNotFound, "Product not found")
		}
		return serverError(c, "delete_product_failed", err)
	}
	h.media.remove(ctx, product.ImageURL)

	return c.NoContent(http.StatusNoContent)
}
