// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package crossfilter

import (
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// Bucket is one pre-aggregated entry, as returned by the aggregation API:
// a label under "_id" or a dimension specific key, and a "count".
type Bucket map[string]any

// Label returns the bucket label under key, falling back to "_id".
func (b Bucket) Label(key string) string {
	for _, k := range []string{key, "_id"} {
		v, ok := b[k]
		if !ok || v == nil {
			continue
		}
		if s := fmt.Sprint(v); s != "" {
			return s
		}
	}
	return ""
}

// Count returns the numeric "count" field, or 0.
func (b Bucket) Count() int64 {
	switch v := b["count"].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// DashboardData is the combined dashboard payload. Fields not modelled here
// are kept in Extra and written back unchanged.
type DashboardData struct {
	TotalManifestations int64 `json:"totalManifestations"`
	Last7Days           int64 `json:"last7Days"`
	Last30Days          int64 `json:"last30Days"`

	ManifestationsByStatus   []Bucket `json:"manifestationsByStatus,omitempty"`
	ManifestationsByTheme    []Bucket `json:"manifestationsByTheme,omitempty"`
	ManifestationsByOrgan    []Bucket `json:"manifestationsByOrgan,omitempty"`
	ManifestationsByType     []Bucket `json:"manifestationsByType,omitempty"`
	ManifestationsByChannel  []Bucket `json:"manifestationsByChannel,omitempty"`
	ManifestationsByPriority []Bucket `json:"manifestationsByPriority,omitempty"`
	ManifestationsByUnit     []Bucket `json:"manifestationsByUnit,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type dashboardDataAlias DashboardData

var modelledKeys = []string{
	"totalManifestations", "last7Days", "last30Days",
	"manifestationsByStatus", "manifestationsByTheme", "manifestationsByOrgan",
	"manifestationsByType", "manifestationsByChannel", "manifestationsByPriority",
	"manifestationsByUnit",
}

// UnmarshalJSON decodes the modelled fields and keeps the rest in Extra.
func (d *DashboardData) UnmarshalJSON(b []byte) error {
	var a dashboardDataAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, k := range modelledKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		a.Extra = raw
	}
	*d = DashboardData(a)
	return nil
}

// MarshalJSON writes the modelled fields merged with Extra.
func (d DashboardData) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(dashboardDataAlias(d))
	if err != nil || len(d.Extra) == 0 {
		return b, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func (d *DashboardData) series(dim Dimension) *[]Bucket {
	switch dim {
	case Status:
		return &d.ManifestationsByStatus
	case Tema:
		return &d.ManifestationsByTheme
	case Orgaos:
		return &d.ManifestationsByOrgan
	case Tipo:
		return &d.ManifestationsByType
	case Canal:
		return &d.ManifestationsByChannel
	case Prioridade:
		return &d.ManifestationsByPriority
	case Unidade:
		return &d.ManifestationsByUnit
	}
	return nil
}

// ApplyFilters projects data through the current state. It returns data
// itself when nothing is active, and a filtered copy otherwise.
func (c *Context) ApplyFilters(data *DashboardData) *DashboardData {
	c.mu.Lock()
	state := c.state
	baseline := c.allData
	c.mu.Unlock()
	return Project(data, state, baseline)
}

// Project filters each aggregate series of data down to the buckets
// matching the active dimension values, case-insensitively, and estimates
// the window totals as round(filtered / original * window). The baseline,
// when set, supplies the original figures; otherwise data does.
//
// The totals are an approximation. Exact figures require querying the raw
// records with the equivalent filter clauses.
func Project(data *DashboardData, state State, baseline *DashboardData) *DashboardData {
	if data == nil || !state.Any() {
		return data
	}

	out := *data
	for _, dim := range dimensionOrder {
		value, active := state.Get(dim)
		src := out.series(dim)
		if src == nil {
			continue
		}
		if !active || *src == nil {
			*src = append([]Bucket(nil), *src...)
			continue
		}
		key := dimensionInfos[dim].bucketKey
		filtered := make([]Bucket, 0, len(*src))
		for _, b := range *src {
			if strings.EqualFold(b.Label(key), value) {
				filtered = append(filtered, b)
			}
		}
		*src = filtered
	}

	orig := data
	if baseline != nil {
		orig = baseline
	}
	originalTotal := orig.TotalManifestations
	if originalTotal == 0 {
		originalTotal = data.TotalManifestations
	}
	if originalTotal == 0 {
		originalTotal = 1
	}
	last7 := orig.Last7Days
	if last7 == 0 {
		last7 = data.Last7Days
	}
	last30 := orig.Last30Days
	if last30 == 0 {
		last30 = data.Last30Days
	}

	total := data.TotalManifestations
	if len(out.ManifestationsByStatus) > 0 {
		total = 0
		for _, b := range out.ManifestationsByStatus {
			total += b.Count()
		}
	}

	ratio := float64(total) / float64(originalTotal)
	out.TotalManifestations = total
	out.Last7Days = int64(math.Round(ratio * float64(last7)))
	out.Last30Days = int64(math.Round(ratio * float64(last30)))
	return &out
}
