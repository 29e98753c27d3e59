// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/ouvidoria/internal/filter"
	"github.com/tomtom215/ouvidoria/internal/logging"
)

// ApplyFilterResponse is the outcome of ApplyFilter.
type ApplyFilterResponse struct {
	Result   filter.Result   `json:"result"`
	Snapshot filter.Snapshot `json:"snapshot"`
}

// Filters returns the global filter state.
func (h *Handler) Filters(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.Filters.Snapshot()
	NewResponseWriter(w, r).SuccessWithMeta(snap, &APIMeta{Generation: snap.Generation})
}

// ApplyFilter applies one clause with the engine's toggle semantics.
func (h *Handler) ApplyFilter(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req ApplyFilterRequest
	if !decodeBody(rw, r, &req) {
		return
	}

	opts := []filter.ApplyOption{filter.WithOperator(req.Operator)}
	if req.Toggle != nil {
		opts = append(opts, filter.Toggle(*req.Toggle))
	}
	if req.ClearPrevious != nil {
		opts = append(opts, filter.ClearPrevious(*req.ClearPrevious))
	}
	if req.DebounceMS > 0 {
		opts = append(opts, filter.Debounce(time.Duration(req.DebounceMS)*time.Millisecond))
	}
	result, snap := h.svc.Filters.ApplySnapshot(req.Field, req.Value, req.ChartID, opts...)

	logging.Ctx(r.Context()).Debug().
		Str("field", sanitizeLogValue(req.Field)).
		Str("result", string(result)).
		Msg("filter applied via API")

	rw.SuccessWithMeta(ApplyFilterResponse{Result: result, Snapshot: snap}, &APIMeta{Generation: snap.Generation})
}

// RemoveFilter removes the clause ?field=&value=.
func (h *Handler) RemoveFilter(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()
	field, value := q.Get("field"), q.Get("value")
	if field == "" || value == "" {
		rw.BadRequest("field and value are required")
		return
	}
	if !h.svc.Filters.Remove(field, value) {
		rw.NotFound("filter is not active")
		return
	}
	snap := h.svc.Filters.Snapshot()
	rw.SuccessWithMeta(snap, &APIMeta{Generation: snap.Generation})
}

// ClearFilters removes every global filter.
func (h *Handler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	h.svc.Filters.Clear()
	snap := h.svc.Filters.Snapshot()
	NewResponseWriter(w, r).SuccessWithMeta(snap, &APIMeta{Generation: snap.Generation})
}

// FilterRequest returns the merged global and crossfilter clauses the
// aggregation API should be queried with.
func (h *Handler) FilterRequest(w http.ResponseWriter, r *http.Request) {
	req := h.svc.FilterRequest()
	NewResponseWriter(w, r).SuccessWithMeta(req, &APIMeta{Generation: req.Generation})
}

// FilterActive reports whether ?field=&value= is an active clause.
func (h *Handler) FilterActive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	active := h.svc.Filters.IsActive(q.Get("field"), q.Get("value"))
	NewResponseWriter(w, r).Success(map[string]bool{"active": active})
}
