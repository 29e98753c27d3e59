// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"net/http"

	"github.com/tomtom215/ouvidoria/internal/crossfilter"
)

// CrossfilterState is the crossfilter context as served by the API.
type CrossfilterState struct {
	State  crossfilter.State `json:"state"`
	Active int               `json:"active"`
}

func (h *Handler) crossfilterState() CrossfilterState {
	return CrossfilterState{
		State:  h.svc.Crossfilter.State(),
		Active: h.svc.Crossfilter.GetActiveFilterCount(),
	}
}

// Crossfilter returns the active dimensions.
func (h *Handler) Crossfilter(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.crossfilterState())
}

// ToggleCrossfilter sets a dimension value, or clears it when the value is
// already active. Listeners are notified after the debounce.
func (h *Handler) ToggleCrossfilter(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req ToggleRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	dim, err := crossfilter.ParseDimension(req.Dimension)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if err := h.svc.Crossfilter.Toggle(dim, req.Value); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	rw.Success(h.crossfilterState())
}

// ClearCrossfilter deactivates every dimension.
func (h *Handler) ClearCrossfilter(w http.ResponseWriter, r *http.Request) {
	h.svc.Crossfilter.ClearAllFilters()
	NewResponseWriter(w, r).Success(h.crossfilterState())
}

// ProjectCrossfilter projects a posted dashboard payload through the active
// dimensions. The stored baseline, when set, supplies the original totals.
func (h *Handler) ProjectCrossfilter(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var data crossfilter.DashboardData
	if !decodeBody(rw, r, &data) {
		return
	}
	rw.Success(h.svc.Crossfilter.ApplyFilters(&data))
}
