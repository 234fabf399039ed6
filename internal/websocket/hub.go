// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

// Package websocket streams enforcement events to dashboard clients. The hub
// implements the engine's event sink: every lock, disconnect, reset, and ban
// is fanned out live to all connected admin sessions.
package websocket

import (
	"context"
	"sync"

	"github.com/tomtom215/ocwarden/internal/enforcement"
	"github.com/tomtom215/ocwarden/internal/logging"
	"github.com/tomtom215/ocwarden/internal/metrics"
)

// Message types pushed to event-feed clients.
const (
	MessageTypeEvent = "enforcement_event"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// Message is one websocket frame payload.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub maintains the set of connected clients and fans events out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Run it under the supervisor before
// registering any clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Publish implements enforcement.EventSink. It never blocks: when the
// broadcast buffer is full the event is dropped, since the feed is a live
// view and the engine must not stall on slow dashboard clients.
func (h *Hub) Publish(event enforcement.Event) {
	select {
	case h.broadcast <- Message{Type: MessageTypeEvent, Data: event}:
	default:
		logging.Debug().Str("type", event.Type).Msg("Event feed buffer full; event dropped")
	}
}

// Run operates the hub until the context is canceled, then closes every
// client. Registration is prioritized over broadcasting so client state is
// settled before messages fan out.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.register:
			h.addClient(client)
			continue
		case client := <-h.unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	logging.Info().Int("clients", count).Msg("Event feed client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(count))
	logging.Info().Int("clients", count).Msg("Event feed client disconnected")
}

// broadcastToClients delivers one message to every client. A client whose
// send buffer is full is dropped; a stuck client must not hold back the
// others.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.RLock()
	var stuck []*Client
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			stuck = append(stuck, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stuck {
		h.removeClient(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()

	metrics.WebSocketClients.Set(0)
	if count > 0 {
		logging.Info().Int("clients", count).Msg("Event feed hub shut down")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
