// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/productscan/internal/services/auth"
	"github.com/labstack/echo/v4"
)

const (
	msgInternal         = "Internal server error"
	msgNotAuthenticated = "Not authenticated"
)

// jsonError writes {"error": msg} with the given status.
func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// serverError logs err under event and answers with a generic 500.
func serverError(c echo.Context, event string, err error) error {
	slog.Error(event, "error", err, "method", c.Request().Method, "path", c.Request().URL.Path)
	return jsonError(c, http.StatusInternalServerError, msgInternal)
}

// passwordError answers a failed password check with the individual rule
// violations. It returns false when err is not a password validation error.
func passwordError(c echo.Context, err error) (bool, error) {
	var pwErr *auth.PasswordValidationError
	if !errors.As(err, &pwErr) {
		return false, nil
	}
	return true, c.JSON(http.StatusBadRequest, map[string]any{
		"error":   "Password does not meet requirements",
		"details": pwErr.Messages(),
	})
}

// ErrorHandler renders errors that escape handlers, such as unknown routes,
// oversized bodies or rate limiting, in the API's JSON error shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := msgInternal

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	} else {
		slog.Error("unhandled_error", "error", err, "path", c.Request().URL.Path)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = jsonError(c, status, msg)
	}
	if err != nil {
		slog.Error("error_response_failed", "error", err)
	}
}
