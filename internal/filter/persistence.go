// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package filter

import (
	"errors"
	"fmt"

	"github.com/tomtom215/ouvidoria/internal/metrics"
	"github.com/tomtom215/ouvidoria/internal/persist"
)

// ErrNoStorage is returned by Save when the engine has no storage.
var ErrNoStorage = errors.New("filter: no storage configured")

// persistedFilters is the data section of the stored record.
type persistedFilters struct {
	Filters     []Clause `json:"filters"`
	ActiveField string   `json:"activeField"`
	ActiveValue string   `json:"activeValue"`
}

// Save writes the current clause list to storage. An empty list deletes the
// stored record instead of writing an empty one.
func (e *Engine) Save() error {
	return e.save(e.Snapshot())
}

// save writes snap unless a newer generation is already stored.
func (e *Engine) save(snap Snapshot) error {
	if e.storage == nil {
		return ErrNoStorage
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	if snap.Generation < e.savedGen {
		return nil
	}
	if err := e.write(snap); err != nil {
		return err
	}
	e.savedGen = snap.Generation
	return nil
}

func (e *Engine) write(snap Snapshot) error {
	if len(snap.Filters) == 0 {
		return e.removeStored()
	}

	rec, err := persist.NewRecord(persistedFilters{
		Filters:     snap.Filters,
		ActiveField: snap.ActiveField,
		ActiveValue: snap.ActiveValue,
	}, e.now(), 0)
	if err != nil {
		return err
	}
	b, err := persist.EncodeRecord(rec)
	if err != nil {
		return err
	}
	if err := e.storage.SetItem(e.storageKey, b); err != nil {
		return fmt.Errorf("store filters: %w", err)
	}
	return nil
}

func (e *Engine) removeStored() error {
	if err := e.storage.RemoveItem(e.storageKey); err != nil && !errors.Is(err, persist.ErrNotFound) {
		return fmt.Errorf("remove stored filters: %w", err)
	}
	return nil
}

// Load applies the startup persistence policy and returns the number of
// clauses restored.
//
// Without restore the stored record is deleted and the engine starts empty,
// so a reloaded page never inherits a forgotten filter. With restore only
// the most recently applied clause is brought back. Records that cannot be
// decoded, including ones written by an older schema, are deleted.
func (e *Engine) Load(restore bool) int {
	e.mu.Lock()
	e.filters = nil
	e.activeField, e.activeValue = "", ""
	e.mu.Unlock()

	if e.storage == nil {
		return 0
	}
	if !restore {
		if err := e.removeStored(); err != nil {
			e.logger.Warn().Err(err).Msg("failed to discard stored filters")
		}
		return 0
	}

	clause, ok := e.readStored()
	if !ok {
		return 0
	}

	e.mu.Lock()
	e.filters = []Clause{clause}
	e.activeField, e.activeValue = clause.Field, clause.Value
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	metrics.ActiveFilters.WithLabelValues(metricsEngineLabel).Set(1)
	e.logger.Info().
		Str("field", clause.Field).
		Str("value", clause.Value).
		Uint64("generation", gen).
		Msg("restored stored filter")
	return 1
}

func (e *Engine) readStored() (Clause, bool) {
	b, err := e.storage.GetItem(e.storageKey)
	if err != nil {
		if !errors.Is(err, persist.ErrNotFound) {
			e.logger.Warn().Err(err).Msg("failed to read stored filters")
		}
		return Clause{}, false
	}

	var data persistedFilters
	rec, err := persist.DecodeRecord(b)
	if err == nil {
		err = rec.Decode(&data)
	}
	if err != nil {
		e.logger.Warn().Err(err).Msg("discarding unreadable stored filters")
		if rmErr := e.removeStored(); rmErr != nil {
			e.logger.Warn().Err(rmErr).Msg("failed to discard stored filters")
		}
		return Clause{}, false
	}

	for i := len(data.Filters) - 1; i >= 0; i-- {
		c := data.Filters[i]
		if c.Field == "" || c.Value == "" {
			continue
		}
		if c.Operator == "" {
			c.Operator = OpEq
		}
		if !c.Operator.Valid() {
			continue
		}
		return c, true
	}
	return Clause{}, false
}
