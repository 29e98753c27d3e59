// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package registry maps chart identifiers to the data field they filter on
// and tracks the chart instances currently drawn by dashboard pages.
//
// The field table is static and read-only after construction. The chart
// registry is last-write-wins: registering an id that is already present
// replaces the previous entry.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/eventbus"
	"github.com/tomtom215/ouvidoria/internal/filter"
	"github.com/tomtom215/ouvidoria/internal/logging"
)

// Bus topics emitted by the registry.
const (
	TopicChartRegistered   = "chart:registered"
	TopicChartUnregistered = "chart:unregistered"
)

// ChartConfig describes a chart as it is drawn.
type ChartConfig struct {
	Type     string          `json:"type" validate:"omitempty,max=64"`
	Field    string          `json:"field,omitempty" validate:"omitempty,max=128"`
	Operator filter.Operator `json:"operator,omitempty" validate:"omitempty,filterop"`
	PageID   string          `json:"pageId,omitempty" validate:"omitempty,max=128"`
}

// Chart is a registered chart instance.
type Chart struct {
	ID string `json:"id"`
	ChartConfig
	CreatedAt time.Time `json:"createdAt"`
}

// RegisteredEvent is the payload of TopicChartRegistered.
type RegisteredEvent struct {
	ChartID string      `json:"chartId"`
	Config  ChartConfig `json:"config"`
}

// UnregisteredEvent is the payload of TopicChartUnregistered.
type UnregisteredEvent struct {
	ChartID string `json:"chartId"`
}

// Registry holds the static field table and the live chart set.
type Registry struct {
	mappings map[string]Mapping
	bus      *eventbus.Bus
	now      func() time.Time
	logger   zerolog.Logger

	mu     sync.RWMutex
	charts map[string]Chart
}

// Option configures a Registry.
type Option func(*Registry)

// WithMappings adds or overrides field mappings on top of the defaults.
func WithMappings(m map[string]Mapping) Option {
	return func(r *Registry) {
		for id, mapping := range m {
			r.mappings[id] = mapping
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates a registry. A nil bus disables registration events.
func New(bus *eventbus.Bus, opts ...Option) *Registry {
	r := &Registry{
		mappings: DefaultMappings(),
		bus:      bus,
		now:      time.Now,
		logger:   logging.OrNop(nil),
		charts:   make(map[string]Chart),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetFieldMapping returns the static mapping for a chart id.
func (r *Registry) GetFieldMapping(chartID string) (Mapping, bool) {
	m, ok := r.mappings[chartID]
	return m, ok
}

// Mappings returns a copy of the full field table.
func (r *Registry) Mappings() map[string]Mapping {
	out := make(map[string]Mapping, len(r.mappings))
	for id, m := range r.mappings {
		out[id] = m
	}
	return out
}

// RegisterChart records a drawn chart, replacing any earlier registration
// with the same id.
func (r *Registry) RegisterChart(id string, cfg ChartConfig) Chart {
	c := Chart{ID: id, ChartConfig: cfg, CreatedAt: r.now()}

	r.mu.Lock()
	_, replaced := r.charts[id]
	r.charts[id] = c
	r.mu.Unlock()

	r.logger.Debug().Str("chart", id).Bool("replaced", replaced).Msg("chart registered")
	r.emit(TopicChartRegistered, RegisteredEvent{ChartID: id, Config: cfg})
	return c
}

// UnregisterChart removes a chart. The event fires even when the id was not
// registered.
func (r *Registry) UnregisterChart(id string) {
	r.mu.Lock()
	delete(r.charts, id)
	r.mu.Unlock()

	r.emit(TopicChartUnregistered, UnregisteredEvent{ChartID: id})
}

// GetChart returns a registered chart.
func (r *Registry) GetChart(id string) (Chart, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.charts[id]
	return c, ok
}

// GetAllCharts returns every registered chart ordered by id.
func (r *Registry) GetAllCharts() []Chart {
	r.mu.RLock()
	out := make([]Chart, 0, len(r.charts))
	for _, c := range r.charts {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetChartsByField returns the registered charts that filter on field. The
// static table decides; charts missing from it fall back to their
// registered Field.
func (r *Registry) GetChartsByField(field string) []Chart {
	var out []Chart
	for _, c := range r.GetAllCharts() {
		if r.chartField(c) == field {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) chartField(c Chart) string {
	if m, ok := r.mappings[c.ID]; ok {
		return m.Field
	}
	return c.Field
}

// Len returns the number of registered charts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.charts)
}

func (r *Registry) emit(topic string, payload any) {
	if r.bus != nil {
		r.bus.Emit(topic, payload)
	}
}
