// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package crossfilter implements the multi-dimensional overview filter: a
// fixed set of dimensions, each holding at most one value, with toggle
// setters and a debounced notification carrying the final state.
//
// Unlike the global filter engine there is no clause list. The two engines
// are independent and may be active at the same time; request builders
// merge both.
package crossfilter

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/eventbus"
	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/metrics"
)

// TopicChanged is emitted with a ChangedEvent after each debounced
// notification.
const TopicChanged = "crossfilter:changed"

// DefaultDebounce is the notification quiet period.
const DefaultDebounce = 100 * time.Millisecond

// Listener receives the final state and its active dimension count.
type Listener func(state State, active int)

// ChangedEvent is the payload of TopicChanged.
type ChangedEvent struct {
	Filters State `json:"filters"`
	Active  int   `json:"activeCount"`
}

// Config configures a Context.
type Config struct {
	// Debounce defaults to 100ms.
	Debounce time.Duration

	// Bus optionally receives TopicChanged.
	Bus *eventbus.Bus

	Logger *zerolog.Logger
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Context is the crossfilter state holder.
type Context struct {
	debounce time.Duration
	bus      *eventbus.Bus
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	allData   *DashboardData
	listeners []listenerEntry
	nextID    uint64
	timer     *time.Timer
	seq       uint64
	closed    bool
}

// New creates a Context with every dimension inactive.
func New(cfg Config) *Context {
	c := &Context{
		debounce: cfg.Debounce,
		bus:      cfg.Bus,
		logger:   logging.OrNop(cfg.Logger),
	}
	if c.debounce <= 0 {
		c.debounce = DefaultDebounce
	}
	return c
}

// Toggle activates value on d, or clears d when value is already active.
// An empty value clears d.
func (c *Context) Toggle(d Dimension, value string) error {
	if d.index() < 0 {
		return ErrUnknownDimension
	}

	c.mu.Lock()
	current, _ := c.state.Get(d)
	next := value
	if current == value {
		next = ""
	}
	c.state.set(d, next)
	c.scheduleLocked()
	c.mu.Unlock()

	c.logger.Debug().
		Str("dimension", string(d)).
		Str("value", value).
		Bool("active", next != "").
		Msg("crossfilter toggled")
	return nil
}

// The setters below toggle a single dimension.

func (c *Context) SetStatusFilter(v string)     { _ = c.Toggle(Status, v) }
func (c *Context) SetTemaFilter(v string)       { _ = c.Toggle(Tema, v) }
func (c *Context) SetOrgaosFilter(v string)     { _ = c.Toggle(Orgaos, v) }
func (c *Context) SetTipoFilter(v string)       { _ = c.Toggle(Tipo, v) }
func (c *Context) SetCanalFilter(v string)      { _ = c.Toggle(Canal, v) }
func (c *Context) SetPrioridadeFilter(v string) { _ = c.Toggle(Prioridade, v) }
func (c *Context) SetUnidadeFilter(v string)    { _ = c.Toggle(Unidade, v) }
func (c *Context) SetBairroFilter(v string)     { _ = c.Toggle(Bairro, v) }

// ClearAllFilters deactivates every dimension.
func (c *Context) ClearAllFilters() {
	c.mu.Lock()
	c.state = State{}
	c.scheduleLocked()
	c.mu.Unlock()
}

// State returns the current state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetActiveFilterCount returns the number of active dimensions.
func (c *Context) GetActiveFilterCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Count()
}

// SetAllData stores the unfiltered dashboard payload used as the baseline
// for proportional totals.
func (c *Context) SetAllData(d *DashboardData) {
	c.mu.Lock()
	c.allData = d
	c.mu.Unlock()

	var total int64
	if d != nil {
		total = d.TotalManifestations
	}
	c.logger.Debug().Int64("total", total).Msg("crossfilter baseline set")
}

// GetFilteredData returns the active state when a baseline is set and at
// least one dimension is active. Callers use it to decide whether to query
// the filtered endpoint instead of the baseline.
func (c *Context) GetFilteredData() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allData == nil || !c.state.Any() {
		return State{}, false
	}
	return c.state, true
}

// OnFilterChange registers fn and returns a function that removes it.
func (c *Context) OnFilterChange(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Close cancels a pending notification. Later changes are not notified.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// scheduleLocked replaces any pending notification with a new one. The
// sequence number discards a timer that fired while being replaced.
func (c *Context) scheduleLocked() {
	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.timer = time.AfterFunc(c.debounce, func() { c.notify(seq) })
}

func (c *Context) notify(seq uint64) {
	c.mu.Lock()
	if seq != c.seq || c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	state := c.state
	listeners := append([]listenerEntry(nil), c.listeners...)
	c.mu.Unlock()

	count := state.Count()
	metrics.CrossfilterNotifications.Inc()
	metrics.ActiveFilters.WithLabelValues("crossfilter").Set(float64(count))

	for _, l := range listeners {
		c.call(l.fn, state, count)
	}
	if c.bus != nil {
		c.bus.Emit(TopicChanged, ChangedEvent{Filters: state, Active: count})
	}
}

func (c *Context) call(fn Listener, state State, count int) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("crossfilter listener panicked")
		}
	}()
	fn(state, count)
}
