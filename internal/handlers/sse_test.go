// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/productscan/internal/handlers"
	"codeberg.org/oliverandrich/productscan/internal/models"
	"codeberg.org/oliverandrich/productscan/internal/sse"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEEvents_Streams(t *testing.T) {
	hub := sse.NewHub()
	h := handlers.NewSSEHandler(hub).WithHeartbeat(20 * time.Millisecond)
	alice := &models.User{ID: 7, Username: "alice"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newSyncRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	c := newContext(echo.New(), req, w, alice)

	done := make(chan error, 1)
	go func() { done <- h.Events(c) }()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish(alice.ID, sse.EventProductCreated, map[string]string{"name": "RTX 4080"})
	hub.Publish(99, sse.EventProductCreated, map[string]string{"name": "someone else"})

	require.Eventually(t, func() bool {
		return strings.Contains(w.String(), "event: "+sse.EventProductCreated)
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(w.String(), sse.Heartbeat)
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}

	body := w.String()
	assert.True(t, strings.HasPrefix(body, sse.FormatEvent(sse.EventConnected, "ok")))
	assert.Contains(t, body, "RTX 4080")
	assert.NotContains(t, body, "someone else")
	assert.Equal(t, "text/event-stream", w.Header().Get(echo.HeaderContentType))
	assert.Zero(t, hub.ClientCount())
}

func TestSSEEvents_RequiresUser(t *testing.T) {
	h := handlers.NewSSEHandler(sse.NewHub())

	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, h.Events(guestContext(e, httptest.NewRequest(http.MethodGet, "/api/events", nil), rec)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, h.Hub().ClientCount())
}
