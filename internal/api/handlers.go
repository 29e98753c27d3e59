// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/ouvidoria/internal/config"
	"github.com/tomtom215/ouvidoria/internal/dashboard"
	ws "github.com/tomtom215/ouvidoria/internal/websocket"
)

// maxBodyBytes caps request bodies. Dashboard payloads posted for
// projection are the largest.
const maxBodyBytes = 4 << 20

// Handler serves the dashboard core over HTTP.
type Handler struct {
	svc       *dashboard.Service
	hub       *ws.Hub
	cfg       config.ServerConfig
	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewHandler creates a handler. hub may be nil, in which case /ws answers
// 503.
func NewHandler(svc *dashboard.Service, hub *ws.Hub, cfg config.ServerConfig) *Handler {
	h := &Handler{
		svc:       svc,
		hub:       hub,
		cfg:       cfg,
		startTime: time.Now(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

// checkOrigin allows same-origin requests, requests without an Origin
// header, and the configured CORS origins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
