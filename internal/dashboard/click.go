// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/ouvidoria/internal/crossfilter"
	"github.com/tomtom215/ouvidoria/internal/filter"
	"github.com/tomtom215/ouvidoria/internal/registry"
)

// TopicChartClicked carries a ClickedEvent after every handled click.
const TopicChartClicked = "chart:clicked"

var (
	// ErrUnknownChart is returned for a chart id with no static mapping and
	// no registration.
	ErrUnknownChart = errors.New("dashboard: unknown chart")

	// ErrNotFilterable is returned for charts that do not filter.
	ErrNotFilterable = errors.New("dashboard: chart does not filter")
)

// ClickMode selects where a click lands.
type ClickMode string

const (
	// ClickAuto uses the crossfilter when the field has a dimension and the
	// global engine otherwise.
	ClickAuto        ClickMode = "auto"
	ClickGlobal      ClickMode = "global"
	ClickCrossfilter ClickMode = "crossfilter"
)

// Route names the component that handled a click.
type Route string

const (
	RouteGlobal      Route = "global"
	RouteCrossfilter Route = "crossfilter"
	RouteReset       Route = "reset"
)

// ClickRequest is one click on a chart segment.
type ClickRequest struct {
	ChartID string    `json:"chartId" validate:"required,max=128"`
	Value   string    `json:"value" validate:"required_without=Reset,max=512"`
	Label   string    `json:"label,omitempty" validate:"max=512"`
	Count   int64     `json:"count,omitempty" validate:"gte=0"`
	Mode    ClickMode `json:"mode,omitempty" validate:"omitempty,oneof=auto global crossfilter"`

	// MultiSelect adds to the filters instead of replacing the field's
	// previous value.
	MultiSelect bool `json:"multiSelect,omitempty"`

	// Reset clears every global and crossfilter filter.
	Reset bool `json:"reset,omitempty"`
}

// ClickOutcome reports what a click did.
type ClickOutcome struct {
	ChartID   string                `json:"chartId"`
	Route     Route                 `json:"route"`
	Field     string                `json:"field,omitempty"`
	Value     string                `json:"value,omitempty"`
	Operator  filter.Operator       `json:"op,omitempty"`
	Dimension crossfilter.Dimension `json:"dimension,omitempty"`
	Result    filter.Result         `json:"result,omitempty"`
	Active    bool                  `json:"active"`
}

// ClickedEvent is the payload of TopicChartClicked.
type ClickedEvent struct {
	ClickOutcome
	Label string `json:"label,omitempty"`
	Count int64  `json:"count,omitempty"`
	Page  string `json:"page,omitempty"`
}

// HandleChartClick turns a chart click into a filter change.
func (s *Service) HandleChartClick(req ClickRequest) (ClickOutcome, error) {
	out := ClickOutcome{ChartID: req.ChartID}

	if req.Reset {
		s.ClearAll()
		out.Route = RouteReset
		s.emitClick(out, req)
		return out, nil
	}

	mapping, err := s.resolveMapping(req.ChartID)
	if err != nil {
		return out, err
	}
	value := strings.TrimSpace(req.Value)
	out.Field = mapping.Field
	out.Value = value
	out.Operator = mapping.Operator

	mode := req.Mode
	if mode == "" {
		mode = ClickAuto
	}
	dim, hasDim := crossfilter.DimensionForField(mapping.Field)
	if mode == ClickCrossfilter && !hasDim {
		return out, fmt.Errorf("%w: field %s has no crossfilter dimension", ErrNotFilterable, mapping.Field)
	}

	if hasDim && mode != ClickGlobal {
		if err := s.Crossfilter.Toggle(dim, value); err != nil {
			return out, err
		}
		current, _ := s.Crossfilter.State().Get(dim)
		out.Route = RouteCrossfilter
		out.Dimension = dim
		out.Active = current == value
	} else {
		out.Route = RouteGlobal
		out.Result = s.Filters.Apply(mapping.Field, value, req.ChartID,
			filter.WithOperator(mapping.Operator),
			filter.ClearPrevious(!req.MultiSelect),
		)
		out.Active = s.Filters.IsActive(mapping.Field, value)
	}

	s.logger.Debug().
		Str("chart", req.ChartID).
		Str("route", string(out.Route)).
		Str("field", out.Field).
		Bool("active", out.Active).
		Msg("chart click handled")
	s.emitClick(out, req)
	return out, nil
}

// resolveMapping prefers the static table and falls back to the field a
// chart was registered with.
func (s *Service) resolveMapping(chartID string) (registry.Mapping, error) {
	if m, ok := s.Registry.GetFieldMapping(chartID); ok {
		if !m.Filterable() {
			return m, fmt.Errorf("%w: %s", ErrNotFilterable, chartID)
		}
		return m, nil
	}
	chart, ok := s.Registry.GetChart(chartID)
	if !ok {
		return registry.Mapping{}, fmt.Errorf("%w: %s", ErrUnknownChart, chartID)
	}
	m := registry.Mapping{Field: chart.Field, Operator: chart.Operator}
	if !m.Filterable() {
		return m, fmt.Errorf("%w: %s", ErrNotFilterable, chartID)
	}
	if m.Operator == "" {
		m.Operator = filter.OpEq
	}
	return m, nil
}

func (s *Service) emitClick(out ClickOutcome, req ClickRequest) {
	s.Bus.Emit(TopicChartClicked, ClickedEvent{
		ClickOutcome: out,
		Label:        req.Label,
		Count:        req.Count,
		Page:         s.CurrentPage(),
	})
}
