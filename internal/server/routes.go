// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/oliverandrich/productscan/internal/handlers"
	"github.com/labstack/echo/v4"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	App      *handlers.Handlers
	Products *handlers.ProductHandlers
	Auth     *handlers.AuthHandlers
	Passkeys *handlers.PasskeyHandlers
	Profile  *handlers.ProfileHandlers
	Admin    *handlers.AdminHandlers
	Events   *handlers.SSEHandler
}

// RouteOptions holds the router settings that are not handlers.
type RouteOptions struct {
	// Limit guards the expensive and brute-forceable endpoints.
	Limit echo.MiddlewareFunc
	// UploadsDir is served at /uploads when images are stored locally.
	UploadsDir string
}

func setupRoutes(e *echo.Echo, h *Handlers, opts RouteOptions) {
	limit := opts.Limit
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	requireAuth := RequireAuth()

	if opts.UploadsDir != "" {
		e.Static("/uploads", opts.UploadsDir)
	}

	e.GET("/health", h.App.Health)

	api := e.Group("/api")

	// Products
	api.POST("/products/identify", h.Products.Identify, limit)
	api.GET("/products", h.Products.List)
	api.GET("/products/search", h.Products.Search)
	api.DELETE("/products/:id", h.Products.Delete, requireAuth)

	// Accounts
	api.POST("/register", h.Auth.Register, limit)
	api.GET("/verify-email", h.Auth.VerifyEmail)
	api.POST("/login", h.Auth.Login, limit)
	api.POST("/logout", h.Auth.Logout)
	api.GET("/user", h.Auth.User)
	api.POST("/guest", h.Auth.Guest)
	api.GET("/auth/github", h.Auth.GitHubLogin)
	api.GET("/auth/github/callback", h.Auth.GitHubCallback)
	api.POST("/reset-password/request", h.Auth.RequestPasswordReset, limit)
	api.POST("/reset-password/reset", h.Auth.ResetPassword, limit)

	// Passkeys
	api.POST("/passkeys/register/begin", h.Passkeys.RegisterBegin, requireAuth)
	api.POST("/passkeys/register/finish", h.Passkeys.RegisterFinish, requireAuth)
	api.POST("/passkeys/login/begin", h.Passkeys.LoginBegin, limit)
	api.POST("/passkeys/login/finish", h.Passkeys.LoginFinish, limit)
	api.GET("/passkeys", h.Passkeys.List, requireAuth)
	api.DELETE("/passkeys/:id", h.Passkeys.Delete, requireAuth)

	// Profile
	profile := api.Group("/profile", requireAuth)
	profile.GET("", h.Profile.Get)
	profile.PUT("", h.Profile.Update)
	profile.DELETE("", h.Profile.Delete)
	profile.POST("/picture", h.Profile.UploadPicture)
	profile.POST("/change-password", h.Profile.ChangePassword)

	// Admin
	admin := api.Group("/admin", RequireAdmin())
	admin.GET("/users", h.Admin.ListUsers)
	admin.GET("/users/:id", h.Admin.GetUser)
	admin.PUT("/users/:id/role", h.Admin.SetRole)
	admin.DELETE("/users/:id", h.Admin.DeleteUser)
	admin.POST("/users/:id/deactivate", h.Admin.DeactivateUser)
	admin.POST("/users/:id/restore", h.Admin.RestoreUser)
	admin.GET("/products", h.Admin.ListProducts)
	admin.DELETE("/products/:id", h.Admin.DeleteProduct)
	admin.GET("/stats", h.Admin.Stats)

	// Events
	api.GET("/events", h.Events.Events, requireAuth)
}
