// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ouvidoria/internal/cache"
	"github.com/tomtom215/ouvidoria/internal/logging"
)

// CacheEntry is one cached value as served by the API.
type CacheEntry struct {
	Key      string          `json:"key"`
	Value    json.RawMessage `json:"value"`
	StoredAt *time.Time      `json:"storedAt,omitempty"`
	TTLMs    int64           `json:"ttlMs"`
}

// CacheStats returns the store statistics.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.svc.Store.Stats())
}

// CacheEntry returns the fresh value of ?key=. Keys are API paths, so they
// travel in the query rather than the route.
func (h *Handler) CacheEntry(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	key := r.URL.Query().Get("key")
	if key == "" {
		rw.BadRequest("key is required")
		return
	}

	value, ok := h.svc.Store.Get(key)
	if !ok {
		rw.NotFound("no fresh entry for key")
		return
	}
	out := CacheEntry{Key: key, Value: value, TTLMs: h.svc.Store.TTLFor(key).Milliseconds()}
	if e, ok := h.svc.Store.Entry(key); ok && !e.StoredAt.IsZero() {
		at := e.StoredAt
		out.StoredAt = &at
	}
	rw.Success(out)
}

// SetCacheEntry stores a value. Subscribers of the key are notified, so
// storing dashboardData also resets the crossfilter baseline.
func (h *Handler) SetCacheEntry(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req SetEntryRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if !json.Valid(req.Value) {
		rw.BadRequest("value is not valid JSON")
		return
	}

	var opts []cache.SetOption
	if req.DeepCopy {
		opts = append(opts, cache.DeepCopy())
	}
	h.svc.Store.Set(req.Key, req.Value, opts...)
	logging.Ctx(r.Context()).Debug().Str("key", sanitizeLogValue(req.Key)).Msg("cache entry set via API")

	rw.Success(CacheEntry{Key: req.Key, Value: req.Value, TTLMs: h.svc.Store.TTLFor(req.Key).Milliseconds()})
}

// InvalidateCache marks the given keys stale, or every key when none are
// given.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req InvalidateRequest
	if err := readJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		rw.BadRequest("invalid JSON body")
		return
	}
	if !validateRequest(rw, &req) {
		return
	}
	h.svc.Store.Invalidate(req.Keys...)
	rw.Success(map[string]any{"invalidated": req.Keys, "all": len(req.Keys) == 0})
}

// ClearCache removes ?key= from both tiers, or every entry when no key is
// given.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if key := r.URL.Query().Get("key"); key != "" {
		h.svc.Store.Clear(key)
		rw.Success(map[string]string{"cleared": key})
		return
	}
	h.svc.Store.ClearAll()
	logging.Ctx(r.Context()).Info().Msg("cache cleared via API")
	rw.Success(map[string]bool{"all": true})
}
