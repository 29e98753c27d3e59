// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	LoaderEnabled bool    `json:"loader_enabled"`
	Breaker       string  `json:"breaker,omitempty"`
	WSClients     int     `json:"ws_clients"`
	CacheEntries  int     `json:"cache_entries"`
}

// Health reports liveness plus the loader's circuit state. An open breaker
// makes the service degraded but still serving cached data.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		LoaderEnabled: h.svc.Loader != nil,
		CacheEntries:  h.svc.Store.Stats().Entries,
	}
	if h.svc.Loader != nil {
		status.Breaker = h.svc.Loader.BreakerState()
		if status.Breaker == "open" {
			status.Status = "degraded"
		}
	}
	if h.hub != nil {
		status.WSClients = h.hub.ClientCount()
	}
	NewResponseWriter(w, r).Success(status)
}

// HealthLive always answers 200 while the process serves requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}
