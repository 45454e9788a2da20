// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/productscan/internal/appcontext"
	"codeberg.org/oliverandrich/productscan/internal/config"
	"codeberg.org/oliverandrich/productscan/internal/i18n"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/repository"
	"codeberg.org/oliverandrich/productscan/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const eventsPath = "/api/events"

func setupMiddleware(e *echo.Echo, cfg *config.Config, sessions *session.Manager, users UserLoader) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger())
	e.Use(middleware.Secure())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, eventsPath)
		},
	}))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.Server.MaxBodySize)))
	e.Use(i18nMiddleware())
	e.Use(IdentityMiddleware(sessions, users))
}

// requestLogger returns middleware that logs requests using slog.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}

			level := slog.LevelInfo
			switch {
			case v.Error != nil:
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				level = slog.LevelError
			case v.Status >= http.StatusInternalServerError:
				level = slog.LevelError
			}
			slog.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// i18nMiddleware sets the locale based on Accept-Language header.
func i18nMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := i18n.WithAcceptLanguage(c.Request().Context(), c.Request().Header.Get("Accept-Language"))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// UserLoader loads the account behind a session.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// IdentityMiddleware resolves the session cookie once per request and wraps
// the context in an appcontext.Context. Soft-deleted or vanished users
// resolve to an anonymous caller.
func IdentityMiddleware(sessions *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &appcontext.Context{Context: c, Identity: session.Anonymous()}

			data, _ := sessions.Parse(c.Request())
			identity := data.Identity()

			if userID, ok := identity.CurrentUserID(); ok {
				user, err := users.GetUserByID(c.Request().Context(), userID)
				switch {
				case err == nil && !user.IsDeleted():
					cc.Identity = identity
					cc.User = user
				case err != nil && !errors.Is(err, repository.ErrNotFound):
					slog.Error("session_user_lookup_failed", "user_id", userID, "error", err)
					return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
				}
			} else if identity.IsGuest() {
				cc.Identity = identity
			}

			return next(cc)
		}
	}
}

// RequireAuth rejects callers without a logged-in user.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !appcontext.From(c).IsAuthenticated() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
			}
			return next(c)
		}
	}
}

// RequireAdmin rejects callers that are not logged-in admins.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := appcontext.From(c)
			if !cc.IsAuthenticated() {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
			}
			if !cc.IsAdmin() {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Access denied: Admin role required"})
			}
			return next(c)
		}
	}
}
