// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package filter implements the global filter engine: an ordered list of
// clauses driven by chart clicks, with toggle-on-repeat and
// clear-previous-on-new-click semantics.
//
// Every mutation bumps a generation counter, optionally persists the clause
// list, invalidates the filter-sensitive cache keys, schedules the reload
// hook and notifies the bus. Bus payloads carry the generation so that
// consumers can drop notifications older than the state they have already
// rendered.
//
// Thread Safety: all methods are safe for concurrent use. Side effects run
// after the engine lock is released. The persisted record never goes back
// to an older generation, so concurrent callers cannot leave storage behind
// memory.
package filter

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/eventbus"
	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/metrics"
	"github.com/tomtom215/ouvidoria/internal/persist"
)

// Bus topics emitted by the engine.
const (
	TopicApplied         = "filter:applied"
	TopicRemoved         = "filter:removed"
	TopicCleared         = "filter:cleared"
	TopicUpdateRequested = "charts:update-requested"
)

const (
	// DefaultStorageKey is the persisted record key of the clause list.
	DefaultStorageKey = "dashboardFilters"

	// DefaultReloadDelay is the quiet period before the reload hook runs.
	DefaultReloadDelay = 100 * time.Millisecond

	metricsEngineLabel = "global"
)

// DefaultInvalidateKeys are the cache keys whose content depends on the
// active filters.
var DefaultInvalidateKeys = []string{
	"dashboardData",
	"/api/dashboard-data",
	"/api/summary",
	"/api/aggregate/by-month",
	"/api/aggregate/by-day",
	"/api/aggregate/by-theme",
	"/api/aggregate/by-subject",
	"/api/aggregate/count-by",
	"/api/stats/status-overview",
}

// Result is the outcome of Apply.
type Result string

const (
	ResultApplied Result = "applied"
	ResultRemoved Result = "removed"
	ResultCleared Result = "cleared"
	ResultIgnored Result = "ignored"

	// ResultPending means a debounced call was scheduled.
	ResultPending Result = "pending"
)

// Invalidator drops cached entries. *cache.Store satisfies it.
type Invalidator interface {
	Invalidate(keys ...string)
}

// Indicator renders the active filter state. It is called after every
// mutation with the new snapshot.
type Indicator interface {
	Update(Snapshot)
}

// IndicatorFunc adapts a function to Indicator.
type IndicatorFunc func(Snapshot)

// Update calls f(snap).
func (f IndicatorFunc) Update(snap Snapshot) { f(snap) }

// Snapshot is the engine state at one generation.
type Snapshot struct {
	Filters     []Clause `json:"filters"`
	ActiveField string   `json:"activeField,omitempty"`
	ActiveValue string   `json:"activeValue,omitempty"`
	Generation  uint64   `json:"generation"`
}

// AppliedEvent is the payload of TopicApplied.
type AppliedEvent struct {
	Field      string   `json:"field"`
	Value      string   `json:"value"`
	SourceID   string   `json:"chartId,omitempty"`
	Filters    []Clause `json:"filters"`
	Generation uint64   `json:"generation"`
}

// RemovedEvent is the payload of TopicRemoved.
type RemovedEvent struct {
	Field      string   `json:"field"`
	Value      string   `json:"value"`
	Filters    []Clause `json:"filters"`
	Generation uint64   `json:"generation"`
}

// ClearedEvent is the payload of TopicCleared.
type ClearedEvent struct {
	Generation uint64 `json:"generation"`
}

// UpdateRequestedEvent is the payload of TopicUpdateRequested, the single
// batched notification every registered chart listens for.
type UpdateRequestedEvent struct {
	Filters     []Clause `json:"filters"`
	ActiveField string   `json:"activeField,omitempty"`
	ActiveValue string   `json:"activeValue,omitempty"`
	PageID      string   `json:"pageId,omitempty"`
	Generation  uint64   `json:"generation"`
}

// Config configures an Engine. The zero value is a usable in-memory engine
// with no side effects beyond its own state.
type Config struct {
	// Persist saves the clause list to Storage after every mutation.
	Persist bool

	// Storage holds the persisted clause list.
	Storage persist.Storage

	// StorageKey is the record key in Storage. Default: "dashboardFilters"
	StorageKey string

	// Invalidator is told to drop InvalidateKeys after every mutation.
	Invalidator Invalidator

	// InvalidateKeys default to DefaultInvalidateKeys.
	InvalidateKeys []string

	// Bus receives filter and chart update events.
	Bus *eventbus.Bus

	// ReloadHook is called once per burst of mutations, ReloadDelay after
	// the last one.
	ReloadHook func()

	// ReloadDelay defaults to 100ms.
	ReloadDelay time.Duration

	Indicator Indicator

	// PageID reports the page currently shown, for update events.
	PageID func() string

	Now    func() time.Time
	Logger *zerolog.Logger
}

// Engine is the global filter engine.
type Engine struct {
	storage        persist.Storage
	persist        bool
	storageKey     string
	invalidator    Invalidator
	invalidateKeys []string
	bus            *eventbus.Bus
	indicator      Indicator
	pageID         func() string
	reloadDelay    time.Duration
	now            func() time.Time
	logger         zerolog.Logger

	mu          sync.Mutex
	filters     []Clause
	activeField string
	activeValue string
	generation  uint64

	saveMu   sync.Mutex
	savedGen uint64

	reloadMu    sync.Mutex
	reloadHook  func()
	reloadTimer *time.Timer
	pending     *pendingApply
	closed      bool
}

// pendingApply is a debounced Apply waiting for its quiet period.
type pendingApply struct {
	field, value, sourceID string
	opts                   applyOptions
	timer                  *time.Timer
}

// New creates an engine with an empty clause list. Call Load to apply the
// startup persistence policy.
func New(cfg Config) *Engine {
	e := &Engine{
		storage:        cfg.Storage,
		persist:        cfg.Persist && cfg.Storage != nil,
		storageKey:     cfg.StorageKey,
		invalidator:    cfg.Invalidator,
		invalidateKeys: cfg.InvalidateKeys,
		bus:            cfg.Bus,
		indicator:      cfg.Indicator,
		pageID:         cfg.PageID,
		reloadHook:     cfg.ReloadHook,
		reloadDelay:    cfg.ReloadDelay,
		now:            cfg.Now,
		logger:         logging.OrNop(cfg.Logger),
	}
	if e.storageKey == "" {
		e.storageKey = DefaultStorageKey
	}
	if e.invalidateKeys == nil {
		e.invalidateKeys = append([]string(nil), DefaultInvalidateKeys...)
	}
	if e.reloadDelay <= 0 {
		e.reloadDelay = DefaultReloadDelay
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

type applyOptions struct {
	toggle        bool
	clearPrevious bool
	operator      Operator
	debounce      time.Duration
}

// ApplyOption adjusts a single Apply call.
type ApplyOption func(*applyOptions)

// Toggle controls whether applying an already active clause removes it.
// Default: true
func Toggle(on bool) ApplyOption {
	return func(o *applyOptions) { o.toggle = on }
}

// ClearPrevious controls whether existing clauses are dropped before the new
// one is added. Default: true
func ClearPrevious(on bool) ApplyOption {
	return func(o *applyOptions) { o.clearPrevious = on }
}

// WithOperator sets the clause operator. Default: OpEq
func WithOperator(op Operator) ApplyOption {
	return func(o *applyOptions) { o.operator = op }
}

// Debounce delays the call by d. A later debounced call inside the window
// replaces the pending one. Repeating the pending clause with toggling on
// cancels both when applying it twice would leave the state unchanged.
// Zero or negative d applies immediately. Default: 0
func Debounce(d time.Duration) ApplyOption {
	return func(o *applyOptions) { o.debounce = d }
}

// Apply adds a clause for field=value, or removes it when it is already
// active and toggling is on. With ClearPrevious the existing list is
// dropped first, silently, so exactly one terminal event fires.
func (e *Engine) Apply(field, value, sourceID string, opts ...ApplyOption) Result {
	r, _ := e.ApplySnapshot(field, value, sourceID, opts...)
	return r
}

// ApplySnapshot is Apply returning the state the call produced. Ignored and
// debounced calls return the state at the time of the call.
func (e *Engine) ApplySnapshot(field, value, sourceID string, opts ...ApplyOption) (Result, Snapshot) {
	o := applyOptions{toggle: true, clearPrevious: true, operator: OpEq}
	for _, opt := range opts {
		opt(&o)
	}

	if field == "" || value == "" {
		e.logger.Warn().Str("field", field).Str("value", value).Msg("filter apply ignored: missing field or value")
		return e.count(ResultIgnored), e.Snapshot()
	}
	if o.operator == "" {
		o.operator = OpEq
	}
	if !o.operator.Valid() {
		e.logger.Warn().Str("field", field).Str("operator", string(o.operator)).Msg("filter apply ignored: invalid operator")
		return e.count(ResultIgnored), e.Snapshot()
	}
	if o.debounce > 0 {
		return e.debounceApply(field, value, sourceID, o), e.Snapshot()
	}
	return e.apply(field, value, sourceID, o)
}

func (e *Engine) apply(field, value, sourceID string, o applyOptions) (Result, Snapshot) {
	e.mu.Lock()
	idx := e.indexLocked(field, value)
	existed := idx >= 0

	if existed && !o.toggle && !o.clearPrevious {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return e.count(ResultIgnored), snap
	}

	if o.clearPrevious && len(e.filters) > 0 {
		e.logger.Debug().Int("count", len(e.filters)).Msg("clearing previous filters")
		e.filters = nil
	}

	var result Result
	if existed && o.toggle {
		if !o.clearPrevious {
			e.filters = append(e.filters[:idx:idx], e.filters[idx+1:]...)
		}
		if n := len(e.filters); n > 0 {
			e.activeField, e.activeValue = e.filters[n-1].Field, e.filters[n-1].Value
			result = ResultRemoved
		} else {
			e.activeField, e.activeValue = "", ""
			result = ResultCleared
		}
	} else {
		e.filters = append(e.filters, Clause{Field: field, Value: value, Operator: o.operator, SourceID: sourceID})
		e.activeField, e.activeValue = field, value
		result = ResultApplied
	}
	snap := e.mutatedLocked()
	e.mu.Unlock()

	e.afterMutation(snap)
	switch result {
	case ResultApplied:
		e.emit(TopicApplied, AppliedEvent{Field: field, Value: value, SourceID: sourceID, Filters: snap.Filters, Generation: snap.Generation})
	case ResultRemoved:
		e.emit(TopicRemoved, RemovedEvent{Field: field, Value: value, Filters: snap.Filters, Generation: snap.Generation})
	case ResultCleared:
		e.emit(TopicCleared, ClearedEvent{Generation: snap.Generation})
	}

	e.logger.Debug().
		Str("field", field).
		Str("value", value).
		Str("result", string(result)).
		Int("filters", len(snap.Filters)).
		Uint64("generation", snap.Generation).
		Msg("filter applied")
	return e.count(result), snap
}

// debounceApply schedules o for later and reports ResultPending, or
// ResultIgnored when it cancelled an identical pending call.
func (e *Engine) debounceApply(field, value, sourceID string, o applyOptions) Result {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	if e.closed {
		return e.count(ResultIgnored)
	}

	if p := e.pending; p != nil {
		p.timer.Stop()
		e.pending = nil
		if o.toggle && p.opts.toggle && p.field == field && p.value == value && e.twiceIsIdentity(field, value, o) {
			e.logger.Debug().Str("field", field).Str("value", value).Msg("debounced filter toggled back")
			return e.count(ResultIgnored)
		}
	}

	p := &pendingApply{field: field, value: value, sourceID: sourceID, opts: o}
	p.opts.debounce = 0
	p.timer = time.AfterFunc(o.debounce, func() { e.firePending(p) })
	e.pending = p
	return e.count(ResultPending)
}

// twiceIsIdentity reports whether two toggling applies of field=value
// restore the current list. Clearing previous clauses breaks that unless
// nothing else is active.
func (e *Engine) twiceIsIdentity(field, value string, o applyOptions) bool {
	if !o.clearPrevious {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch len(e.filters) {
	case 0:
		return true
	case 1:
		return e.filters[0].same(field, value)
	}
	return false
}

func (e *Engine) firePending(p *pendingApply) {
	e.reloadMu.Lock()
	if e.pending != p || e.closed {
		e.reloadMu.Unlock()
		return
	}
	e.pending = nil
	e.reloadMu.Unlock()

	e.apply(p.field, p.value, p.sourceID, p.opts)
}

// Remove deletes the clause for field=value. It reports whether a clause
// was removed; nothing happens otherwise.
func (e *Engine) Remove(field, value string) bool {
	e.mu.Lock()
	idx := e.indexLocked(field, value)
	if idx < 0 {
		e.mu.Unlock()
		return false
	}
	e.filters = append(e.filters[:idx:idx], e.filters[idx+1:]...)
	if e.activeField == field && e.activeValue == value {
		e.activeField, e.activeValue = "", ""
	}
	snap := e.mutatedLocked()
	e.mu.Unlock()

	e.afterMutation(snap)
	e.emit(TopicRemoved, RemovedEvent{Field: field, Value: value, Filters: snap.Filters, Generation: snap.Generation})
	e.count(ResultRemoved)
	return true
}

// Clear drops every clause and always emits TopicCleared.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.filters = nil
	e.activeField, e.activeValue = "", ""
	snap := e.mutatedLocked()
	e.mu.Unlock()

	e.afterMutation(snap)
	e.emit(TopicCleared, ClearedEvent{Generation: snap.Generation})
	e.count(ResultCleared)
}

// IsActive reports whether a clause for field=value is present.
func (e *Engine) IsActive(field, value string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.indexLocked(field, value) >= 0
}

// Filters returns a copy of the clause list in application order.
func (e *Engine) Filters() []Clause {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneClauses(e.filters)
}

// Active returns the most recently applied field and value.
func (e *Engine) Active() (field, value string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeField, e.activeValue, e.activeField != ""
}

// Generation returns the current mutation counter.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// SetReloadHook replaces the reload hook. Nil disables reloads.
func (e *Engine) SetReloadHook(fn func()) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	e.reloadHook = fn
}

// SetIndicator replaces the indicator. Nil disables it.
func (e *Engine) SetIndicator(ind Indicator) {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	e.indicator = ind
}

// RequestReload schedules the reload hook as a mutation would. Other
// filter sources use it to share one debounced reload with the engine.
func (e *Engine) RequestReload() {
	e.scheduleReload()
}

// Close stops a pending reload and drops a pending debounced Apply. Later
// mutations no longer schedule a reload.
func (e *Engine) Close() {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	e.closed = true
	if e.reloadTimer != nil {
		e.reloadTimer.Stop()
		e.reloadTimer = nil
	}
	if e.pending != nil {
		e.pending.timer.Stop()
		e.pending = nil
	}
}

func (e *Engine) indexLocked(field, value string) int {
	for i, c := range e.filters {
		if c.same(field, value) {
			return i
		}
	}
	return -1
}

func (e *Engine) mutatedLocked() Snapshot {
	e.generation++
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Filters:     cloneClauses(e.filters),
		ActiveField: e.activeField,
		ActiveValue: e.activeValue,
		Generation:  e.generation,
	}
}

func (e *Engine) afterMutation(snap Snapshot) {
	metrics.ActiveFilters.WithLabelValues(metricsEngineLabel).Set(float64(len(snap.Filters)))

	if e.persist {
		if err := e.save(snap); err != nil {
			e.logger.Warn().Err(err).Str("key", e.storageKey).Msg("failed to persist filters")
		}
	}
	if e.invalidator != nil && len(e.invalidateKeys) > 0 {
		e.invalidator.Invalidate(e.invalidateKeys...)
	}
	e.scheduleReload()

	e.reloadMu.Lock()
	ind := e.indicator
	e.reloadMu.Unlock()
	if ind != nil {
		e.updateIndicator(ind, snap)
	}

	var page string
	if e.pageID != nil {
		page = e.pageID()
	}
	e.emit(TopicUpdateRequested, UpdateRequestedEvent{
		Filters:     snap.Filters,
		ActiveField: snap.ActiveField,
		ActiveValue: snap.ActiveValue,
		PageID:      page,
		Generation:  snap.Generation,
	})
}

func (e *Engine) updateIndicator(ind Indicator, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("filter indicator panicked")
		}
	}()
	ind.Update(snap)
}

func (e *Engine) scheduleReload() {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()
	if e.closed || e.reloadHook == nil {
		return
	}
	if e.reloadTimer != nil {
		e.reloadTimer.Stop()
	}
	hook := e.reloadHook
	e.reloadTimer = time.AfterFunc(e.reloadDelay, func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error().Interface("panic", r).Msg("reload hook panicked")
			}
		}()
		hook()
	})
}

func (e *Engine) emit(topic string, payload any) {
	if e.bus != nil {
		e.bus.Emit(topic, payload)
	}
}

func (e *Engine) count(r Result) Result {
	metrics.FilterMutations.WithLabelValues(string(r)).Inc()
	return r
}

func cloneClauses(in []Clause) []Clause {
	out := make([]Clause, len(in))
	copy(out, in)
	return out
}
