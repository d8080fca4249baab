// Airmirror - Airtable to PostgreSQL Mirror for Hackathon Event Portals
// Copyright 2026 Airmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hackbase/airmirror

// Package websocket streams completed sync runs to connected dashboard
// clients. The hub is an external consumer of the scheduler: it re-broadcasts
// terminal runs, nothing in the sync core depends on it.
package websocket

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/hackbase/airmirror/internal/logging"
	"github.com/hackbase/airmirror/internal/metrics"
)

// Message types pushed to clients.
const (
	MessageTypeSyncCompleted = "sync_completed"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// Message is the envelope for all WebSocket traffic.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
}

// NewHub creates a hub. Run must be called for it to do anything.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes client lifecycle and broadcast events until the context is
// canceled, then closes every client send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			metrics.WebSocketClients.Set(0)
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.WebSocketClients.Set(float64(len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebSocketClients.Set(float64(len(h.clients)))
			}

		case msg := <-h.broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logging.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal broadcast")
				continue
			}
			dropped := 0
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Slow client: drop it rather than stall the hub.
					delete(h.clients, client)
					close(client.send)
					dropped++
				}
			}
			if dropped > 0 {
				metrics.WebSocketClients.Set(float64(len(h.clients)))
			}
		}
	}
}

// BroadcastJSON queues a message for all connected clients. Non-blocking:
// if the broadcast buffer is full the message is dropped, since consumers
// can always re-read the ledger.
func (h *Hub) BroadcastJSON(messageType string, data interface{}) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("type", messageType).Msg("Broadcast buffer full, dropping message")
	}
}
