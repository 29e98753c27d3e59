// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package api

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/ouvidoria/internal/filter"
)

// SetEntryRequest stores a value in the cache.
type SetEntryRequest struct {
	Key      string          `json:"key" validate:"required,max=256"`
	Value    json.RawMessage `json:"value" validate:"required"`
	DeepCopy bool            `json:"deepCopy,omitempty"`
}

// InvalidateRequest marks keys stale. No keys invalidates every entry.
type InvalidateRequest struct {
	Keys []string `json:"keys" validate:"max=256,dive,required,max=256"`
}

// ApplyFilterRequest applies one global filter clause. Toggle and
// ClearPrevious default to true when omitted.
type ApplyFilterRequest struct {
	Field         string          `json:"field" validate:"required,max=128"`
	Value         string          `json:"value" validate:"required,max=512"`
	Operator      filter.Operator `json:"operator,omitempty" validate:"filterop"`
	ChartID       string          `json:"chartId,omitempty" validate:"max=128"`
	Toggle        *bool           `json:"toggle,omitempty"`
	ClearPrevious *bool           `json:"clearPrevious,omitempty"`

	// DebounceMS delays the change; a later debounced request replaces it.
	DebounceMS int `json:"debounceMs,omitempty" validate:"min=0,max=5000"`
}

// ToggleRequest toggles one crossfilter dimension.
type ToggleRequest struct {
	Dimension string `json:"dimension" validate:"required,dimension"`
	Value     string `json:"value" validate:"max=512"`
}

// LoadRequest fetches one or more aggregation API endpoints.
type LoadRequest struct {
	Endpoint  string   `json:"endpoint,omitempty" validate:"omitempty,endpoint"`
	Endpoints []string `json:"endpoints,omitempty" validate:"max=32,dive,endpoint"`
	TimeoutMs int      `json:"timeoutMs,omitempty" validate:"gte=0,lte=120000"`
	Retries   *int     `json:"retries,omitempty" validate:"omitempty,gte=0,lte=5"`
	SkipStore bool     `json:"skipStore,omitempty"`
}

// PageRequest names the page currently shown.
type PageRequest struct {
	Page string `json:"page" validate:"max=128"`
}

// ChartIDParam validates a chart id taken from the URL.
type ChartIDParam struct {
	ID string `json:"id" validate:"required,max=128"`
}
