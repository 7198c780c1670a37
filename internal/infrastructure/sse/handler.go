// Package sse streams pipeline events to HTTP clients as Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/felixgeelhaar/crew/pkg/domain/events"
)

// Handler fans pipeline events out to connected clients. Slow clients
// drop events rather than block the pipeline.
type Handler struct {
	mu      sync.RWMutex
	clients map[chan events.DomainEvent]struct{}

	closeOnce sync.Once
	closing   chan struct{}
}

// NewHandler creates a handler with no clients.
func NewHandler() *Handler {
	return &Handler{
		clients: make(map[chan events.DomainEvent]struct{}),
		closing: make(chan struct{}),
	}
}

// CloseStreams makes every open stream write its buffered events and end.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Handle broadcasts an event to every connected client.
func (h *Handler) Handle(_ context.Context, e events.DomainEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

// Registration subscribes the handler to every pipeline event type.
func (h *Handler) Registration() events.HandlerRegistration {
	return events.HandlerRegistration{
		Name:       "SSE",
		Handler:    h.Handle,
		EventTypes: events.AllTypes(),
	}
}

// Clients returns the number of connected clients.
func (h *Handler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP streams events until the client disconnects. The optional
// types query parameter is a comma-separated event type filter.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	typeFilter := make(map[string]bool)
	if types := r.URL.Query().Get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			typeFilter[strings.TrimSpace(t)] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := make(chan events.DomainEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}()

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	write := func(event events.DomainEvent) {
		if len(typeFilter) > 0 && !typeFilter[event.EventType()] {
			return
		}
		data, err := json.Marshal(event)
		if err != nil {
			return
		}
		_, _ = fmt.Fprintf(w, "id: %s-%d\n", event.RunID(), event.OccurredAt().UnixNano())
		_, _ = fmt.Fprintf(w, "event: %s\n", event.EventType())
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			write(event)
		case <-h.closing:
			for {
				select {
				case event := <-ch:
					write(event)
				default:
					return
				}
			}
		}
	}
}
