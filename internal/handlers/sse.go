// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/appcontext"
	"codeberg.org/oliverandrich/productscan/internal/sse"
	"github.com/labstack/echo/v4"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler handles Server-Sent Events connections.
type SSEHandler struct {
	hub       *sse.Hub
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler.
func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, heartbeat: defaultHeartbeat}
}

// WithHeartbeat changes the keep-alive interval.
func (h *SSEHandler) WithHeartbeat(d time.Duration) *SSEHandler {
	h.heartbeat = d
	return h
}

// Events streams the logged-in user's events until the client disconnects.
func (h *SSEHandler) Events(c echo.Context) error {
	user := appcontext.From(c).User
	if user == nil {
		return jsonError(c, http.StatusUnauthorized, msgNotAuthenticated)
	}

	ctx := c.Request().Context()
	w := c.Response()

	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	ch := h.hub.Register(user.ID)
	defer h.hub.Unregister(user.ID, ch)

	if _, err := w.Write([]byte(sse.FormatEvent(sse.EventConnected, "ok"))); err != nil {
		return nil //nolint:nilerr // client went away
	}
	w.Flush()

	// Heartbeat ticker to keep connection alive through proxies
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(sse.Heartbeat)); err != nil {
				return nil //nolint:nilerr // client went away
			}
			w.Flush()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				return nil //nolint:nilerr // client went away
			}
			w.Flush()
		}
	}
}

// Hub returns the SSE hub for publishing from other components.
func (h *SSEHandler) Hub() *sse.Hub {
	return h.hub
}
