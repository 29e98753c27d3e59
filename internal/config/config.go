// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package config

import (
	"fmt"
	"time"
)

// Config holds the configuration of every dashboard core component.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values matching the dashboard's behaviour
//  2. Config File: optional YAML file (config.yaml)
//  3. Environment Variables: override any mapped setting
//
// Example:
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	svc, err := dashboard.New(cfg, storage, logger)
//
// Thread Safety:
// Config is immutable after LoadWithKoanf and safe for concurrent reads.
type Config struct {
	Cache       CacheConfig       `koanf:"cache"`
	Persist     PersistConfig     `koanf:"persist"`
	Filters     FiltersConfig     `koanf:"filters"`
	Crossfilter CrossfilterConfig `koanf:"crossfilter"`
	Loader      LoaderConfig      `koanf:"loader"`
	Server      ServerConfig      `koanf:"server"`
	Events      EventsConfig      `koanf:"events"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// CacheConfig is the key-value store TTL table.
type CacheConfig struct {
	// DefaultTTL applies to keys no rule matches.
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// PersistThreshold is the minimum TTL for write-through to the
	// persistent mirror.
	PersistThreshold time.Duration `koanf:"persist_threshold"`

	// ClassTTLs gives the TTL of each class (static, semiStatic, dynamic).
	ClassTTLs map[string]time.Duration `koanf:"class_ttls"`

	// ExactTTLs maps a full key to its TTL.
	ExactTTLs map[string]time.Duration `koanf:"exact_ttls"`

	// PatternTTLs maps a wildcard key pattern to its TTL.
	PatternTTLs map[string]time.Duration `koanf:"pattern_ttls"`

	// ClassRules assigns a class to every key containing the rule text.
	ClassRules map[string]string `koanf:"class_rules"`
}

// PersistConfig configures the persistent mirror and its Badger storage.
type PersistConfig struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	InMemory bool `koanf:"in_memory"`

	// QuotaBytes caps stored bytes. Zero means unlimited.
	QuotaBytes int64 `koanf:"quota_bytes"`

	// Prefix namespaces mirrored keys.
	Prefix string `koanf:"prefix"`

	// SweepInterval is how often expired records are removed.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	SyncWrites bool `koanf:"sync_writes"`
}

// FiltersConfig configures the global filter engine.
type FiltersConfig struct {
	// Persist saves the clause list after every mutation.
	Persist bool `koanf:"persist"`

	// Restore reloads the last persisted clause at startup. When false any
	// persisted clauses are discarded.
	Restore bool `koanf:"restore"`

	StorageKey string `koanf:"storage_key"`

	// ReloadDelay debounces the reload hook.
	ReloadDelay time.Duration `koanf:"reload_delay"`

	// PageDebounce debounces page reloads triggered by filter events.
	PageDebounce time.Duration `koanf:"page_debounce"`

	// InvalidateKeys are dropped from the store after every mutation.
	InvalidateKeys []string `koanf:"invalidate_keys"`
}

// CrossfilterConfig configures the crossfilter context.
type CrossfilterConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// LoaderConfig configures the aggregation API client.
type LoaderConfig struct {
	// BaseURL of the aggregation API. Empty disables the loader.
	BaseURL string `koanf:"base_url"`

	MaxConcurrent int `koanf:"max_concurrent"`

	// Retries after the first attempt for timeouts and transport errors.
	Retries int `koanf:"retries"`

	BackoffBase time.Duration `koanf:"backoff_base"`

	DefaultTimeout time.Duration `koanf:"default_timeout"`

	// Timeouts maps an endpoint substring to its request timeout.
	Timeouts map[string]time.Duration `koanf:"timeouts"`

	// RateLimit is requests per second. Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the upstream circuit breaker.
type BreakerConfig struct {
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EventsConfig configures how bus events leave the process.
type EventsConfig struct {
	// Topic is the watermill topic bridged events are published on.
	Topic string `koanf:"topic"`

	// Forward lists the bus topics sent to WebSocket clients. Empty
	// forwards every topic.
	Forward []string `koanf:"forward"`

	// BufferSize is the gochannel output buffer.
	BufferSize int64 `koanf:"buffer_size"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
