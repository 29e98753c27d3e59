// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/ouvidoria/internal/dashboard"
	"github.com/tomtom215/ouvidoria/internal/logging"
	ws "github.com/tomtom215/ouvidoria/internal/websocket"
)

// WelcomeData is sent to every client right after it connects so it can
// render the current state before the first event arrives.
type WelcomeData struct {
	ClientID    uint64           `json:"clientId"`
	Filters     any              `json:"filters"`
	Crossfilter CrossfilterState `json:"crossfilter"`
	Page        string           `json:"page,omitempty"`
}

// WebSocket upgrades the connection and registers the client with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("event stream is disabled")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn)
	client.Send(ws.Message{
		Type: ws.MessageTypeWelcome,
		Data: WelcomeData{
			ClientID:    client.ID(),
			Filters:     h.svc.Filters.Snapshot(),
			Crossfilter: h.crossfilterState(),
			Page:        h.svc.CurrentPage(),
		},
		At: time.Now().UTC(),
	})
	h.hub.Register <- client
	client.Start()
}

// ClientMessageHandler returns the hub callback for client frames. A
// "page" frame carrying a page id sets the current page.
func ClientMessageHandler(svc *dashboard.Service) func(*ws.Client, ws.Message) {
	return func(c *ws.Client, msg ws.Message) {
		if msg.Type != ws.MessageTypePage {
			return
		}
		page, ok := msg.Data.(string)
		if !ok {
			logging.Debug().Uint64("client", c.ID()).Msg("ignoring page frame without a page id")
			return
		}
		svc.SetCurrentPage(page)
	}
}
