// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/eventbus"
	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/metrics"
	"github.com/tomtom215/ouvidoria/internal/persist"
)

// DefaultPersistThreshold is the TTL from which entries are written through
// to the persistent mirror and read from it first.
const DefaultPersistThreshold = 10 * time.Minute

// DashboardDataKey is the key of the combined dashboard payload; Stats
// reports its age.
const DashboardDataKey = "dashboardData"

// Entry is a cached value and the moment it was stored.
type Entry[V any] struct {
	Value    V
	StoredAt time.Time
}

// Change is delivered to subscribers whenever a key is written, invalidated
// or cleared. Present is false for invalidations and clears. Key is empty
// when the whole store was cleared.
type Change[V any] struct {
	Key     string
	Value   V
	Present bool
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Entries          int      `json:"cacheSize"`
	Listeners        int      `json:"listenersCount"`
	Keys             []string `json:"keys"`
	PersistentKeys   int      `json:"persistentKeys"`
	Hits             int64    `json:"hits"`
	PersistentHits   int64    `json:"persistentHits"`
	Misses           int64    `json:"misses"`
	Invalidations    int64    `json:"invalidations"`
	DashboardDataAge *int64   `json:"dashboardDataAge"`
}

// Options configures a Store.
type Options struct {
	// Policy resolves per-key TTLs. Default: DefaultPolicyConfig()
	Policy *Policy

	// Mirror is the persistent tier. Nil keeps the store memory-only.
	Mirror *persist.Mirror

	// Bus carries change notifications. Default: a private bus.
	Bus *eventbus.Bus

	// PersistThreshold is the minimum TTL for write-through. Default: 10m
	PersistThreshold time.Duration

	// Now is the clock. Default: time.Now
	Now func() time.Time

	Logger *zerolog.Logger
}

// Store is the in-memory key-value tier shared by every chart, KPI card and
// table. Values are stored by reference; use WithCopy and DeepCopy when a
// caller intends to mutate what it reads or writes.
//
// Thread Safety: safe for concurrent use. Subscribers are called
// synchronously on the writing goroutine, after the store lock is released.
type Store[V any] struct {
	mu        sync.RWMutex
	entries   map[string]Entry[V]
	policy    *Policy
	mirror    *persist.Mirror
	bus       *eventbus.Bus
	threshold time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	hits           atomic.Int64
	persistentHits atomic.Int64
	misses         atomic.Int64
	invalidations  atomic.Int64
	listeners      atomic.Int64
}

// New creates an empty store.
func New[V any](opts Options) *Store[V] {
	s := &Store[V]{
		entries:   make(map[string]Entry[V]),
		policy:    opts.Policy,
		mirror:    opts.Mirror,
		bus:       opts.Bus,
		threshold: opts.PersistThreshold,
		now:       opts.Now,
		logger:    logging.OrNop(opts.Logger),
	}
	if s.policy == nil {
		s.policy = MustPolicy(DefaultPolicyConfig())
	}
	if s.bus == nil {
		s.bus = eventbus.New(eventbus.WithLogger(s.logger))
	}
	if s.threshold <= 0 {
		s.threshold = DefaultPersistThreshold
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type getOptions struct {
	ttl  time.Duration
	copy bool
}

// GetOption tunes a single read.
type GetOption func(*getOptions)

// WithTTL overrides the policy TTL for one read.
func WithTTL(ttl time.Duration) GetOption {
	return func(o *getOptions) { o.ttl = ttl }
}

// WithCopy returns a deep copy so the caller cannot mutate cached state.
func WithCopy() GetOption {
	return func(o *getOptions) { o.copy = true }
}

type setOptions struct {
	deepCopy bool
}

// SetOption tunes a single write.
type SetOption func(*setOptions)

// DeepCopy stores a copy of the value instead of the caller's reference.
func DeepCopy() SetOption {
	return func(o *setOptions) { o.deepCopy = true }
}

// Get retrieves the live value for key.
//
// Behavior:
//   - Returns (zero, false) for an empty key, a missing key, or an entry
//     whose age has reached its TTL. Stale entries are deleted lazily here.
//   - For keys whose TTL reaches the persist threshold the persistent mirror
//     is consulted first; a hit there is promoted into memory, keeping the
//     persisted timestamp so promotion never extends its life.
//   - With WithCopy the returned value is a deep copy. If the value cannot be
//     copied the original reference is returned and a warning logged.
//
// Example:
//
//	if v, ok := store.Get("/api/summary"); ok {
//	    render(v)
//	}
func (s *Store[V]) Get(key string, opts ...GetOption) (V, bool) {
	o := getOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	v, tier, ok := s.lookup(key, o.ttl)
	if !ok {
		s.misses.Add(1)
		metrics.CacheMisses.Inc()
		return v, false
	}

	if tier == "persistent" {
		s.persistentHits.Add(1)
	}
	s.hits.Add(1)
	metrics.CacheHits.WithLabelValues(tier).Inc()

	if o.copy {
		return s.copyOf(key, v), true
	}
	return v, true
}

// Has reports whether Get would return a value, without touching stats.
func (s *Store[V]) Has(key string, opts ...GetOption) bool {
	o := getOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	_, _, ok := s.lookup(key, o.ttl)
	return ok
}

func (s *Store[V]) lookup(key string, override time.Duration) (V, string, bool) {
	var zero V
	if key == "" {
		return zero, "", false
	}

	ttl := override
	if ttl <= 0 {
		ttl = s.policy.Resolve(key)
	}

	if s.mirror != nil && ttl >= s.threshold {
		if v, ok := s.fromMirror(key, ttl); ok {
			return v, "persistent", true
		}
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return zero, "", false
	}

	if s.now().Sub(e.StoredAt) >= ttl {
		s.mu.Lock()
		if cur, still := s.entries[key]; still && cur.StoredAt.Equal(e.StoredAt) {
			delete(s.entries, key)
			metrics.CacheEntries.Set(float64(len(s.entries)))
		}
		s.mu.Unlock()
		return zero, "", false
	}
	return e.Value, "memory", true
}

func (s *Store[V]) fromMirror(key string, ttl time.Duration) (V, bool) {
	var v V
	rec, ok := s.mirror.Get(key, ttl)
	if !ok {
		return v, false
	}
	if err := rec.Decode(&v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("persistent value does not fit store type")
		s.mirror.Remove(key)
		return v, false
	}

	s.mu.Lock()
	s.entries[key] = Entry[V]{Value: v, StoredAt: rec.StoredAt()}
	metrics.CacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()
	return v, true
}

func (s *Store[V]) copyOf(key string, v V) V {
	c, err := deepCopy(v)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("deep copy failed, returning shared value")
	}
	return c
}

// Set stores value under key, writes it through to the persistent mirror
// when the key's TTL reaches the persist threshold, and notifies the key's
// subscribers followed by wildcard subscribers. An empty key is ignored.
//
// A failed write-through is never reported to the caller; the stale
// persistent record, if any, is removed so it cannot shadow the new value.
func (s *Store[V]) Set(key string, value V, opts ...SetOption) {
	if key == "" {
		s.logger.Warn().Msg("ignoring cache write with empty key")
		return
	}
	o := setOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	stored := value
	if o.deepCopy {
		stored = s.copyOf(key, value)
	}

	s.mu.Lock()
	s.entries[key] = Entry[V]{Value: stored, StoredAt: s.now()}
	metrics.CacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()

	if s.mirror != nil {
		if ttl := s.policy.Resolve(key); ttl >= s.threshold {
			if !s.mirror.Set(key, stored, ttl) {
				s.mirror.Remove(key)
			}
		}
	}

	s.bus.Emit(key, Change[V]{Key: key, Value: stored, Present: true})
}

// Invalidate forces keys stale without deleting them, so Stats still shows
// the last known value while the next Get misses. Matching persistent
// records are removed. With no keys every in-memory entry and every
// persistent record is invalidated, including records not yet read back
// into memory.
func (s *Store[V]) Invalidate(keys ...string) {
	all := len(keys) == 0
	var persisted []string
	if all && s.mirror != nil {
		persisted = s.mirror.Keys()
	}

	s.mu.Lock()
	if all {
		seen := make(map[string]struct{}, len(s.entries)+len(persisted))
		keys = make([]string, 0, len(s.entries)+len(persisted))
		for k := range s.entries {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		for _, k := range persisted {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
	}
	for _, k := range keys {
		if e, ok := s.entries[k]; ok {
			e.StoredAt = time.Time{}
			s.entries[k] = e
		}
	}
	s.mu.Unlock()

	for _, k := range keys {
		if k == "" {
			continue
		}
		if s.mirror != nil {
			s.mirror.Remove(k)
		}
		s.invalidations.Add(1)
		metrics.CacheInvalidations.Inc()
		s.bus.Emit(k, Change[V]{Key: k})
	}
}

// Clear removes key from memory and from the persistent mirror.
func (s *Store[V]) Clear(key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	delete(s.entries, key)
	metrics.CacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()

	if s.mirror != nil {
		s.mirror.Remove(key)
	}
	s.bus.Emit(key, Change[V]{Key: key})
}

// ClearAll empties both tiers and notifies wildcard subscribers once.
func (s *Store[V]) ClearAll() {
	s.mu.Lock()
	s.entries = make(map[string]Entry[V])
	metrics.CacheEntries.Set(0)
	s.mu.Unlock()

	if s.mirror != nil {
		s.mirror.Clear()
	}
	s.bus.Emit(eventbus.Wildcard, Change[V]{})
}

// Subscribe calls fn for every change to key. Use eventbus.Wildcard to
// follow all keys. The returned function removes the subscription.
func (s *Store[V]) Subscribe(key string, fn func(Change[V])) func() {
	if key == "" || fn == nil {
		return func() {}
	}
	unsub := s.bus.On(key, func(e eventbus.Event) {
		if c, ok := e.Payload.(Change[V]); ok {
			fn(c)
		}
	})
	s.listeners.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			s.listeners.Add(-1)
		})
	}
}

// Stats returns a snapshot of the store.
func (s *Store[V]) Stats() Stats {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	var age *int64
	if e, ok := s.entries[DashboardDataKey]; ok && !e.StoredAt.IsZero() {
		ms := s.now().Sub(e.StoredAt).Milliseconds()
		age = &ms
	}
	s.mu.RUnlock()
	sort.Strings(keys)

	st := Stats{
		Entries:          len(keys),
		Listeners:        int(s.listeners.Load()),
		Keys:             keys,
		Hits:             s.hits.Load(),
		PersistentHits:   s.persistentHits.Load(),
		Misses:           s.misses.Load(),
		Invalidations:    s.invalidations.Load(),
		DashboardDataAge: age,
	}
	if s.mirror != nil {
		st.PersistentKeys = len(s.mirror.Keys())
	}
	return st
}

// Entry returns the raw entry for key, stale or not.
func (s *Store[V]) Entry(key string) (Entry[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// TTLFor returns the TTL the policy assigns to key.
func (s *Store[V]) TTLFor(key string) time.Duration {
	return s.policy.Resolve(key)
}

// DefaultTTL returns the policy's fallback TTL.
func (s *Store[V]) DefaultTTL() time.Duration {
	return s.policy.Default()
}

// SetDefaultTTL changes the policy's fallback TTL.
func (s *Store[V]) SetDefaultTTL(ttl time.Duration) {
	s.policy.SetDefault(ttl)
}
