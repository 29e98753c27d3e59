// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package crossfilter

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// State holds at most one active value per dimension. The zero value has
// every dimension inactive.
type State struct {
	values [numDimensions]string
}

// Get returns the active value of d.
func (s State) Get(d Dimension) (string, bool) {
	i := d.index()
	if i < 0 || s.values[i] == "" {
		return "", false
	}
	return s.values[i], true
}

// Count is the number of active dimensions. It is always derived.
func (s State) Count() int {
	n := 0
	for _, v := range s.values {
		if v != "" {
			n++
		}
	}
	return n
}

// Any reports whether at least one dimension is active.
func (s State) Any() bool {
	return s.Count() > 0
}

// Active returns the active dimensions and their values.
func (s State) Active() map[Dimension]string {
	out := make(map[Dimension]string)
	for i, v := range s.values {
		if v != "" {
			out[dimensionOrder[i]] = v
		}
	}
	return out
}

func (s *State) set(d Dimension, value string) {
	s.values[d.index()] = value
}

// MarshalJSON writes every dimension, inactive ones as null.
func (s State) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range dimensionOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:", string(d))
		if s.values[i] == "" {
			buf.WriteString("null")
			continue
		}
		v, err := json.Marshal(s.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of dimension names to values or null.
// Unknown dimensions are rejected.
func (s *State) UnmarshalJSON(b []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var next State
	for k, v := range raw {
		d, err := ParseDimension(k)
		if err != nil {
			return err
		}
		if v != nil {
			next.set(d, *v)
		}
	}
	*s = next
	return nil
}
