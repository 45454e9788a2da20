// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON API.
package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/productscan/internal/repository"
	"github.com/labstack/echo/v4"
)

// Handlers contains the handlers that need nothing but the database.
type Handlers struct {
	repo *repository.Repository
}

// New creates a new Handlers instance.
func New(repo *repository.Repository) *Handlers {
	return &Handlers{repo: repo}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if err := h.repo.DB().PingContext(c.Request().Context()); err != nil {
		return serverError(c, "health_check_failed", err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
