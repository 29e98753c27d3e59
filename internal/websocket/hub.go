// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/filter"
	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/metrics"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types the hub itself understands. Forwarded dashboard events use
// their bus topic as the type.
const (
	MessageTypePing    = "ping"
	MessageTypePong    = "pong"
	MessageTypeWelcome = "welcome"
	MessageTypePage    = "page"

	// MessageTypeFilterState carries a filter.Snapshot after every global
	// filter change.
	MessageTypeFilterState = "filter:state"
)

// DefaultBufferSize is the broadcast queue length.
const DefaultBufferSize = 256

// Message is one WebSocket frame.
type Message struct {
	Type string    `json:"type"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at,omitempty"`
}

// HubConfig configures a Hub.
type HubConfig struct {
	// BufferSize is the broadcast queue length. Default: DefaultBufferSize
	BufferSize int

	// OnMessage receives every client frame except pings.
	OnMessage func(c *Client, msg Message)

	Logger *zerolog.Logger
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	onMessage  func(c *Client, msg Message)
	logger     zerolog.Logger
	mu         sync.RWMutex
}

// NewHub creates a hub. Serve must run for clients to be registered.
func NewHub(cfg HubConfig) *Hub {
	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Hub{
		broadcast:  make(chan Message, size),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		onMessage:  cfg.OnMessage,
		logger:     logging.OrNop(cfg.Logger),
	}
}

// Serve runs the hub until ctx is done. It implements suture.Service.
//
// Shutdown is checked first, then client lifecycle, then broadcasts, so a
// client registered before a broadcast always receives it.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String names the hub in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(n))
	h.logger.Info().Uint64("client", client.id).Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(n))
	h.logger.Info().Uint64("client", client.id).Int("total_clients", n).Msg("websocket client disconnected")
}

func (h *Hub) shutdown(ctx context.Context) {
	n := h.closeAllClients()
	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	h.logger.Info().
		Str("reason", string(reason)).
		Int("clients_closed", n).
		Msg("websocket hub stopped")
}

// sortedClientsLocked returns clients in id order.
func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients queues message on every client. Clients whose queue is
// full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dropped []*Client
	for _, client := range h.sortedClientsLocked() {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			dropped = append(dropped, client)
		}
	}

	for _, client := range dropped {
		close(client.send)
		delete(h.clients, client)
		h.logger.Warn().Uint64("client", client.id).Msg("websocket client too slow, dropped")
	}
	if len(dropped) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedClientsLocked()
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
	return len(clients)
}

// Broadcast queues msg for every client. It reports false when the queue is
// full and the message was dropped.
func (h *Hub) Broadcast(msg Message) bool {
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- msg:
		return true
	default:
		h.logger.Warn().Str("message_type", msg.Type).Msg("broadcast channel full, dropping message")
		return false
	}
}

// BroadcastJSON queues a message built from messageType and data.
func (h *Hub) BroadcastJSON(messageType string, data any) bool {
	return h.Broadcast(Message{Type: messageType, Data: data})
}

// FilterIndicator returns an indicator that broadcasts each filter snapshot
// so connected pages can redraw their active filter chips.
func (h *Hub) FilterIndicator() filter.Indicator {
	return filter.IndicatorFunc(func(snap filter.Snapshot) {
		h.BroadcastJSON(MessageTypeFilterState, snap)
	})
}

// BroadcastRaw decodes a JSON message body and broadcasts it unchanged.
// Bodies without a type are rejected.
func (h *Hub) BroadcastRaw(body []byte) error {
	var raw struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
		At   time.Time       `json:"at"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		return errMissingType
	}
	h.Broadcast(Message{Type: raw.Type, Data: raw.Data, At: raw.At})
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
