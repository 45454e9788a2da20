// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package appcontext provides the custom Echo context carrying the caller.
package appcontext

import (
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Context is a custom Echo context with the resolved caller identity.
type Context struct {
	echo.Context
	Identity session.Identity
	User     *models.User // nil unless Identity is authenticated
}

// IsAuthenticated returns true if the caller is a logged-in user.
func (c *Context) IsAuthenticated() bool {
	return c.User != nil && c.Identity.IsAuthenticated()
}

// IsAdmin returns true if the caller is a logged-in admin.
func (c *Context) IsAdmin() bool {
	return c.IsAuthenticated() && c.User.IsAdmin()
}

// From extracts the custom context. Plain echo contexts resolve to an
// anonymous caller.
func From(c echo.Context) *Context {
	if cc, ok := c.(*Context); ok {
		return cc
	}
	return &Context{Context: c, Identity: session.Anonymous()}
}
