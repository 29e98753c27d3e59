// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package dashboard wires the data core into one service object: the event
// bus, the key-value store with its persistent mirror, the global filter
// engine, the crossfilter context, the chart registry and the loader.
//
// Every dashboard page talks to the same Service, so one filter click is
// seen by every chart, KPI card and table.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/cache"
	"github.com/tomtom215/ouvidoria/internal/config"
	"github.com/tomtom215/ouvidoria/internal/crossfilter"
	"github.com/tomtom215/ouvidoria/internal/eventbus"
	"github.com/tomtom215/ouvidoria/internal/filter"
	"github.com/tomtom215/ouvidoria/internal/loader"
	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/persist"
	"github.com/tomtom215/ouvidoria/internal/registry"
)

const dashboardDataEndpoint = "/api/dashboard-data"

// ErrLoaderDisabled is returned by data loads when no aggregation API is
// configured.
var ErrLoaderDisabled = errors.New("dashboard: no aggregation API configured")

// Options carries the collaborators New does not build from config.
type Options struct {
	// Storage backs the persistent mirror and the persisted filters.
	// Default: an in-memory storage with the configured quota.
	Storage persist.Storage

	// HTTPClient is used by the loader.
	HTTPClient *http.Client

	// ReloadHook runs once per burst of filter changes from either engine.
	ReloadHook func()

	// Indicator renders the global filter state after every change. It can
	// also be set later through Filters.SetIndicator.
	Indicator filter.Indicator

	Logger *zerolog.Logger
}

// Service owns one instance of every core component.
type Service struct {
	Bus         *eventbus.Bus
	Store       *cache.Store[json.RawMessage]
	Mirror      *persist.Mirror
	Sweeper     *persist.Sweeper
	Filters     *filter.Engine
	Crossfilter *crossfilter.Context
	Registry    *registry.Registry

	// Loader is nil when no aggregation API is configured.
	Loader *loader.Loader

	cfg         *config.Config
	logger      zerolog.Logger
	currentPage atomic.Value // string
	crossKeys   []string

	mu       sync.Mutex
	watchers map[uint64]func()
	nextID   uint64
	unsubs   []func()
	closed   bool
}

// New builds the service described by cfg.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("dashboard: config required")
	}
	logger := logging.OrNop(opts.Logger)
	component := func(name string) *zerolog.Logger {
		l := logger.With().Str("component", name).Logger()
		return &l
	}

	policy, err := cache.NewPolicy(policyConfig(cfg.Cache))
	if err != nil {
		return nil, fmt.Errorf("dashboard: cache policy: %w", err)
	}

	storage := opts.Storage
	if storage == nil {
		storage = persist.NewMemoryStorage(cfg.Persist.QuotaBytes)
	}

	s := &Service{
		cfg:      cfg,
		logger:   *component("dashboard"),
		watchers: make(map[uint64]func()),
	}
	s.currentPage.Store("")

	s.Bus = eventbus.New(eventbus.WithLogger(*component("eventbus")))
	s.Mirror = persist.NewMirror(storage, persist.MirrorConfig{
		Prefix: cfg.Persist.Prefix,
		Logger: component("mirror"),
	})
	s.Sweeper = persist.NewSweeper(s.Mirror, cfg.Persist.SweepInterval)
	s.Store = cache.New[json.RawMessage](cache.Options{
		Policy:           policy,
		Mirror:           s.Mirror,
		PersistThreshold: cfg.Cache.PersistThreshold,
		Logger:           component("cache"),
	})
	s.Filters = filter.New(filter.Config{
		Persist:        cfg.Filters.Persist,
		Storage:        storage,
		StorageKey:     cfg.Filters.StorageKey,
		Invalidator:    s.Store,
		InvalidateKeys: cfg.Filters.InvalidateKeys,
		Bus:            s.Bus,
		ReloadHook:     opts.ReloadHook,
		ReloadDelay:    cfg.Filters.ReloadDelay,
		Indicator:      opts.Indicator,
		PageID:         s.CurrentPage,
		Logger:         component("filters"),
	})
	s.Crossfilter = crossfilter.New(crossfilter.Config{
		Debounce: cfg.Crossfilter.Debounce,
		Bus:      s.Bus,
		Logger:   component("crossfilter"),
	})
	s.Registry = registry.New(s.Bus, registry.WithLogger(*component("registry")))

	if cfg.Loader.BaseURL != "" {
		lcfg := loaderConfig(cfg.Loader)
		lcfg.HTTPClient = opts.HTTPClient
		lcfg.Logger = component("loader")
		s.Loader, err = loader.New(lcfg, s.Store)
		if err != nil {
			return nil, fmt.Errorf("dashboard: %w", err)
		}
	}

	// The full dashboard payload is the crossfilter baseline.
	s.unsubs = append(s.unsubs, s.Store.Subscribe(cache.DashboardDataKey, s.onDashboardData))
	s.crossKeys = crossfilterKeys(cfg.Filters.InvalidateKeys)
	s.unsubs = append(s.unsubs, s.Crossfilter.OnFilterChange(s.onCrossfilterChange))

	restored := s.Filters.Load(cfg.Filters.Restore)
	s.logger.Info().
		Bool("loader", s.Loader != nil).
		Bool("restore_filters", cfg.Filters.Restore).
		Int("restored", restored).
		Msg("dashboard core ready")
	return s, nil
}

// SetCurrentPage records the page the user is looking at. It is stamped on
// chart update events and decides which watched pages reload.
func (s *Service) SetCurrentPage(pageID string) {
	s.currentPage.Store(pageID)
}

// CurrentPage returns the page set by SetCurrentPage.
func (s *Service) CurrentPage() string {
	return s.currentPage.Load().(string)
}

// ClearAll clears the global filters and every crossfilter dimension.
func (s *Service) ClearAll() {
	s.Filters.Clear()
	s.Crossfilter.ClearAllFilters()
}

// LoadData fetches endpoint through the loader.
func (s *Service) LoadData(ctx context.Context, endpoint string, opts ...loader.Option) (json.RawMessage, error) {
	if s.Loader == nil {
		return nil, ErrLoaderDisabled
	}
	return s.Loader.Load(ctx, endpoint, opts...)
}

// DashboardData returns the dashboard payload with the crossfilter
// projection applied. It is served from the store when fresh.
func (s *Service) DashboardData(ctx context.Context) (*crossfilter.DashboardData, error) {
	raw, ok := s.Store.Get(cache.DashboardDataKey)
	if !ok {
		var err error
		raw, err = s.LoadData(ctx, dashboardDataEndpoint)
		if err != nil {
			return nil, err
		}
	}
	var data crossfilter.DashboardData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("dashboard: decode dashboard data: %w", err)
	}
	return s.Crossfilter.ApplyFilters(&data), nil
}

// Stats is a summary of every component.
type Stats struct {
	Cache       cache.Stats        `json:"cache"`
	Loader      *loader.QueueStats `json:"loader,omitempty"`
	Breaker     string             `json:"breaker,omitempty"`
	Filters     filter.Snapshot    `json:"filters"`
	Crossfilter crossfilter.State  `json:"crossfilter"`
	ActiveCross int                `json:"crossfilterActive"`
	Charts      int                `json:"charts"`
	Watchers    int                `json:"watchers"`
	CurrentPage string             `json:"currentPage,omitempty"`
	BusTopics   []string           `json:"busTopics"`
}

// Stats returns the current summary.
func (s *Service) Stats() Stats {
	st := Stats{
		Cache:       s.Store.Stats(),
		Filters:     s.Filters.Snapshot(),
		Crossfilter: s.Crossfilter.State(),
		ActiveCross: s.Crossfilter.GetActiveFilterCount(),
		Charts:      s.Registry.Len(),
		CurrentPage: s.CurrentPage(),
		BusTopics:   s.Bus.Topics(),
	}
	if s.Loader != nil {
		q := s.Loader.QueueStats()
		st.Loader = &q
		st.Breaker = s.Loader.BreakerState()
	}
	s.mu.Lock()
	st.Watchers = len(s.watchers)
	s.mu.Unlock()
	return st
}

// Close stops every watcher and pending timer. Storage is owned by the
// caller and stays open.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stops := make([]func(), 0, len(s.watchers))
	for _, stop := range s.watchers {
		stops = append(stops, stop)
	}
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	for _, u := range unsubs {
		u()
	}
	s.Filters.Close()
	s.Crossfilter.Close()
	s.logger.Info().Msg("dashboard core closed")
}

// onCrossfilterChange drops the filter-sensitive keys and shares the
// engine's debounced reload.
func (s *Service) onCrossfilterChange(_ crossfilter.State, active int) {
	if len(s.crossKeys) > 0 {
		s.Store.Invalidate(s.crossKeys...)
	}
	s.Filters.RequestReload()
	s.logger.Debug().Int("active", active).Int("keys", len(s.crossKeys)).Msg("crossfilter change invalidated cache")
}

// crossfilterKeys are the global filter keys minus the dashboard payload,
// which is the crossfilter baseline and is projected locally.
func crossfilterKeys(keys []string) []string {
	if keys == nil {
		keys = filter.DefaultInvalidateKeys
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == cache.DashboardDataKey || k == dashboardDataEndpoint {
			continue
		}
		out = append(out, k)
	}
	return out
}

func (s *Service) onDashboardData(c cache.Change[json.RawMessage]) {
	if !c.Present {
		return
	}
	var data crossfilter.DashboardData
	if err := json.Unmarshal(c.Value, &data); err != nil {
		s.logger.Warn().Err(err).Msg("dashboard data does not decode, crossfilter baseline unchanged")
		return
	}
	s.Crossfilter.SetAllData(&data)
}

func policyConfig(c config.CacheConfig) cache.PolicyConfig {
	pc := cache.PolicyConfig{
		Default:    c.DefaultTTL,
		Classes:    make(map[cache.Class]time.Duration, len(c.ClassTTLs)),
		Exact:      c.ExactTTLs,
		Patterns:   c.PatternTTLs,
		ClassRules: make(map[string]cache.Class, len(c.ClassRules)),
	}
	for name, ttl := range c.ClassTTLs {
		pc.Classes[cache.Class(name)] = ttl
	}
	for rule, class := range c.ClassRules {
		pc.ClassRules[rule] = cache.Class(class)
	}
	return pc
}

func loaderConfig(c config.LoaderConfig) loader.Config {
	rules := make([]loader.TimeoutRule, 0, len(c.Timeouts))
	for pattern, d := range c.Timeouts {
		rules = append(rules, loader.TimeoutRule{Pattern: pattern, Timeout: d})
	}
	// Longer patterns are more specific and must win.
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].Pattern) != len(rules[j].Pattern) {
			return len(rules[i].Pattern) > len(rules[j].Pattern)
		}
		return rules[i].Pattern < rules[j].Pattern
	})

	return loader.Config{
		BaseURL:        c.BaseURL,
		MaxConcurrent:  c.MaxConcurrent,
		Retries:        c.Retries,
		BackoffBase:    c.BackoffBase,
		Timeouts:       rules,
		DefaultTimeout: c.DefaultTimeout,
		RateLimit:      c.RateLimit,
		RateBurst:      c.RateBurst,
		Breaker: loader.BreakerConfig{
			MaxRequests:  c.Breaker.MaxRequests,
			Interval:     c.Breaker.Interval,
			Timeout:      c.Breaker.Timeout,
			MinRequests:  c.Breaker.MinRequests,
			FailureRatio: c.Breaker.FailureRatio,
		},
	}
}
