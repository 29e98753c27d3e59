// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package dashboard

import (
	"github.com/tomtom215/ouvidoria/internal/crossfilter"
	"github.com/tomtom215/ouvidoria/internal/filter"
)

// CrossfilterSourceID marks clauses that come from crossfilter dimensions.
const CrossfilterSourceID = "crossfilter"

// FilterRequest is the merged filter set sent with aggregation queries.
type FilterRequest struct {
	Filters    []filter.Clause `json:"filters"`
	Generation uint64          `json:"generation"`
}

// Empty reports whether the request filters nothing.
func (r FilterRequest) Empty() bool { return len(r.Filters) == 0 }

// FilterRequest merges the global clauses with the active crossfilter
// dimensions. A global clause on a field suppresses the dimension for the
// same field.
func (s *Service) FilterRequest() FilterRequest {
	snap := s.Filters.Snapshot()
	out := FilterRequest{
		Filters:    make([]filter.Clause, 0, len(snap.Filters)),
		Generation: snap.Generation,
	}
	fields := make(map[string]struct{}, len(snap.Filters))
	for _, c := range snap.Filters {
		out.Filters = append(out.Filters, c)
		fields[c.Field] = struct{}{}
	}

	state := s.Crossfilter.State()
	for _, d := range crossfilter.Dimensions() {
		v, ok := state.Get(d)
		if !ok {
			continue
		}
		if _, dup := fields[d.Field()]; dup {
			continue
		}
		out.Filters = append(out.Filters, filter.Clause{
			Field:    d.Field(),
			Value:    v,
			Operator: filter.OpEq,
			SourceID: CrossfilterSourceID,
		})
	}
	return out
}
