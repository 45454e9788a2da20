// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"log/slog"
	"slices"
	"sync"
)

// Hub fans events out to the open streams of each user. A user may hold
// several streams at once (tabs, devices).
type Hub struct {
	streams map[int64][]chan string
	mu      sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		streams: make(map[int64][]chan string),
	}
}

// Register opens a stream for userID and returns its channel.
func (h *Hub) Register(userID int64) chan string {
	ch := make(chan string, 10) // buffered to prevent blocking

	h.mu.Lock()
	defer h.mu.Unlock()

	h.streams[userID] = append(h.streams[userID], ch)
	return ch
}

// Unregister closes ch and removes it from the user's streams.
func (h *Hub) Unregister(userID int64, ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.streams[userID] = slices.DeleteFunc(h.streams[userID], func(c chan string) bool {
		return c == ch
	})
	if len(h.streams[userID]) == 0 {
		delete(h.streams, userID)
	}

	close(ch)
}

// SendToUser sends a preformatted message to every stream of userID.
// Full streams drop the message.
func (h *Hub) SendToUser(userID int64, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.streams[userID] {
		select {
		case ch <- message:
		default:
		}
	}
}

// Publish encodes payload as a named event and sends it to userID.
func (h *Hub) Publish(userID int64, name string, payload any) {
	msg, err := EncodeEvent(name, payload)
	if err != nil {
		slog.Error("sse_encode_failed", "event", name, "error", err)
		return
	}
	h.SendToUser(userID, msg)
}

// ClientCount returns the total number of open streams.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, streams := range h.streams {
		n += len(streams)
	}
	return n
}

// UserCount returns the number of users with open streams.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.streams)
}
