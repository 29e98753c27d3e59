// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/ouvidoria/internal/dashboard"
	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/registry"
)

// ChartMapping is a chart's static field mapping with its display label.
type ChartMapping struct {
	ChartID    string `json:"chartId"`
	Field      string `json:"field"`
	Operator   string `json:"operator,omitempty"`
	Label      string `json:"label,omitempty"`
	Filterable bool   `json:"filterable"`
}

func chartMapping(id string, m registry.Mapping) ChartMapping {
	out := ChartMapping{ChartID: id, Field: m.Field, Filterable: m.Filterable()}
	if out.Filterable {
		out.Operator = m.Operator.String()
		out.Label = registry.FieldLabel(m.Field)
	}
	return out
}

// chartID reads and validates the {id} route parameter.
func chartID(rw *ResponseWriter, r *http.Request) (string, bool) {
	p := ChartIDParam{ID: chi.URLParam(r, "id")}
	if !validateRequest(rw, &p) {
		return "", false
	}
	return p.ID, true
}

// Charts lists the registered charts, optionally only those filtering on
// ?field=.
func (h *Handler) Charts(w http.ResponseWriter, r *http.Request) {
	var charts []registry.Chart
	if field := r.URL.Query().Get("field"); field != "" {
		charts = h.svc.Registry.GetChartsByField(field)
	} else {
		charts = h.svc.Registry.GetAllCharts()
	}
	if charts == nil {
		charts = []registry.Chart{}
	}
	NewResponseWriter(w, r).Success(charts)
}

// Chart returns one registered chart.
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := chartID(rw, r)
	if !ok {
		return
	}
	c, found := h.svc.Registry.GetChart(id)
	if !found {
		rw.NotFound("chart is not registered")
		return
	}
	rw.Success(c)
}

// RegisterChart records a drawn chart, replacing an earlier registration.
func (h *Handler) RegisterChart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := chartID(rw, r)
	if !ok {
		return
	}
	var cfg registry.ChartConfig
	if !decodeBody(rw, r, &cfg) {
		return
	}
	rw.Created(h.svc.Registry.RegisterChart(id, cfg))
}

// UnregisterChart removes a chart.
func (h *Handler) UnregisterChart(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := chartID(rw, r)
	if !ok {
		return
	}
	h.svc.Registry.UnregisterChart(id)
	rw.Success(map[string]string{"unregistered": id})
}

// ChartMappings returns the whole static field table.
func (h *Handler) ChartMappings(w http.ResponseWriter, r *http.Request) {
	mappings := h.svc.Registry.Mappings()
	out := make(map[string]ChartMapping, len(mappings))
	for id, m := range mappings {
		out[id] = chartMapping(id, m)
	}
	NewResponseWriter(w, r).Success(out)
}

// ChartFieldMapping returns the static mapping of one chart.
func (h *Handler) ChartFieldMapping(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, ok := chartID(rw, r)
	if !ok {
		return
	}
	m, found := h.svc.Registry.GetFieldMapping(id)
	if !found {
		rw.NotFound("chart has no field mapping")
		return
	}
	rw.Success(chartMapping(id, m))
}

// ChartClick routes a click on a chart segment to the global filters or
// the crossfilter.
func (h *Handler) ChartClick(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req dashboard.ClickRequest
	if err := readJSON(w, r, &req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	req.ChartID = chi.URLParam(r, "id")
	if !validateRequest(rw, &req) {
		return
	}

	out, err := h.svc.HandleChartClick(req)
	switch {
	case errors.Is(err, dashboard.ErrUnknownChart):
		rw.NotFound(err.Error())
		return
	case errors.Is(err, dashboard.ErrNotFilterable):
		rw.Conflict(err.Error())
		return
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("chart", sanitizeLogValue(req.ChartID)).Msg("chart click failed")
		rw.InternalError("chart click failed")
		return
	}
	rw.Success(out)
}
