// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package cache

import (
	"crypto/sha256"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mitchellh/copystructure"
)

// deepCopy returns a structural copy of v. When v cannot be copied it
// returns v itself together with the reason.
func deepCopy[V any](v V) (out V, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = v, fmt.Errorf("deep copy panicked: %v", r)
		}
	}()

	c, err := copystructure.Copy(v)
	if err != nil {
		return v, err
	}
	if c == nil {
		return v, nil
	}
	typed, ok := c.(V)
	if !ok {
		return v, fmt.Errorf("deep copy produced %T", c)
	}
	return typed, nil
}

// RequestKey builds a stable cache key for an endpoint called with params,
// hashing the JSON form of params so equal requests share an entry.
func RequestKey(endpoint string, params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", endpoint, params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", endpoint, hash[:16])
}
