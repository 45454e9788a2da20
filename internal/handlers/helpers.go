// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/services/storage"
	"github.com/labstack/echo/v4"
)

// paramID parses a positive integer path parameter.
func paramID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// media turns stored image keys into URLs clients can fetch.
type media struct {
	store storage.Store
}

func (m media) url(ctx context.Context, key string) string {
	if key == "" || m.store == nil {
		return ""
	}
	u, err := m.store.URL(ctx, key)
	if err != nil {
		slog.Warn("image_url_failed", "key", key, "error", err)
		return ""
	}
	return u
}

func (m media) user(ctx context.Context, u *models.User) *models.User {
	if u == nil {
		return nil
	}
	out := *u
	out.ProfilePicture = m.url(ctx, u.ProfilePicture)
	return &out
}

func (m media) users(ctx context.Context, users []models.User) []models.User {
	out := make([]models.User, len(users))
	for i := range users {
		out[i] = *m.user(ctx, &users[i])
	}
	return out
}

func (m media) product(ctx context.Context, p models.Product) models.Product {
	p.ImageURL = m.url(ctx, p.ImageURL)
	return p
}

func (m media) products(ctx context.Context, products []models.Product) []models.Product {
	out := make([]models.Product, len(products))
	for i := range products {
		out[i] = m.product(ctx, products[i])
	}
	return out
}

// remove deletes stored images, logging failures.
func (m media) remove(ctx context.Context, keys ...string) {
	if m.store == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("image_delete_failed", "key", key, "error", err)
		}
	}
}
