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

	"github.com/tomtom215/ouvidoria/internal/dashboard"
	"github.com/tomtom215/ouvidoria/internal/loader"
)

// LoadResult is the outcome of loading one endpoint.
type LoadResult struct {
	Endpoint string          `json:"endpoint"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// LoadData fetches one endpoint, or several concurrently, through the
// loader. A single endpoint failure is an error response; in a batch each
// failure is reported in its own result.
func (h *Handler) LoadData(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req LoadRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	if req.Endpoint == "" && len(req.Endpoints) == 0 {
		rw.ValidationError("endpoint or endpoints is required", nil)
		return
	}

	opts := loadOptions(req)
	if len(req.Endpoints) == 0 {
		data, err := h.svc.LoadData(r.Context(), req.Endpoint, opts...)
		if err != nil {
			h.loadError(rw, err)
			return
		}
		rw.Success(LoadResult{Endpoint: req.Endpoint, Data: data})
		return
	}

	if h.svc.Loader == nil {
		h.loadError(rw, dashboard.ErrLoaderDisabled)
		return
	}
	endpoints := req.Endpoints
	if req.Endpoint != "" {
		endpoints = append([]string{req.Endpoint}, endpoints...)
	}
	results := h.svc.Loader.LoadMany(r.Context(), endpoints, opts...)
	out := make([]LoadResult, len(results))
	for i, res := range results {
		out[i] = LoadResult{Endpoint: res.Endpoint, Data: res.Data}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
		}
	}
	rw.Success(out)
}

func loadOptions(req LoadRequest) []loader.Option {
	var opts []loader.Option
	if req.TimeoutMs > 0 {
		opts = append(opts, loader.WithTimeout(time.Duration(req.TimeoutMs)*time.Millisecond))
	}
	if req.Retries != nil {
		opts = append(opts, loader.WithRetries(*req.Retries))
	}
	if req.SkipStore {
		opts = append(opts, loader.SkipStore())
	}
	return opts
}

func (h *Handler) loadError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrLoaderDisabled):
		rw.ServiceUnavailable(err.Error())
	case errors.Is(err, loader.ErrInvalidEndpoint):
		rw.BadRequest(err.Error())
	default:
		rw.UpstreamError(err)
	}
}

// DashboardData returns the dashboard payload projected through the
// active crossfilter dimensions.
func (h *Handler) DashboardData(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	data, err := h.svc.DashboardData(r.Context())
	if err != nil {
		h.loadError(rw, err)
		return
	}
	rw.SuccessWithMeta(data, &APIMeta{Generation: h.svc.Filters.Generation()})
}

// Stats returns a summary of every component.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.svc.Stats())
}

// SetPage records the page the dashboard is showing. Page watchers of
// other pages skip their reloads.
func (h *Handler) SetPage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req PageRequest
	if !decodeBody(rw, r, &req) {
		return
	}
	h.svc.SetCurrentPage(req.Page)
	rw.Success(req)
}
