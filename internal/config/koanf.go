// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ouvidoria/config.yaml",
	"/etc/ouvidoria/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultForwardTopics are the bus topics pushed to dashboard pages.
var DefaultForwardTopics = []string{
	"filter:applied",
	"filter:removed",
	"filter:cleared",
	"charts:update-requested",
	"crossfilter:changed",
	"chart:registered",
	"chart:unregistered",
	"chart:clicked",
}

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			DefaultTTL:       5 * time.Second,
			PersistThreshold: 10 * time.Minute,
			ClassTTLs: map[string]time.Duration{
				"static":     30 * time.Minute,
				"semiStatic": 10 * time.Minute,
				"dynamic":    5 * time.Second,
			},
			ExactTTLs: map[string]time.Duration{
				"/api/distritos":          30 * time.Minute,
				"/api/aggregate/by-month": 10 * time.Minute,
				"/api/dashboard-data":     5 * time.Second,
				"/api/summary":            5 * time.Second,
			},
			PatternTTLs: map[string]time.Duration{
				"/api/unit/*": 30 * time.Minute,
			},
			ClassRules: map[string]string{
				"/api/distinct": "static",
				"/api/meta/":    "semiStatic",
			},
		},
		Persist: PersistConfig{
			Path:          "/data/ouvidoria",
			InMemory:      false,
			QuotaBytes:    5 << 20, // browser local storage budget
			Prefix:        "dashboard_cache_",
			SweepInterval: 5 * time.Minute,
		},
		Filters: FiltersConfig{
			Persist:      true,
			Restore:      false, // a restarted dashboard never inherits a forgotten filter
			StorageKey:   "dashboardFilters",
			ReloadDelay:  100 * time.Millisecond,
			PageDebounce: 500 * time.Millisecond,
			InvalidateKeys: []string{
				"dashboardData",
				"/api/dashboard-data",
				"/api/summary",
				"/api/aggregate/by-month",
				"/api/aggregate/by-day",
				"/api/aggregate/by-theme",
				"/api/aggregate/by-subject",
				"/api/aggregate/count-by",
				"/api/stats/status-overview",
			},
		},
		Crossfilter: CrossfilterConfig{
			Debounce: 100 * time.Millisecond,
		},
		Loader: LoaderConfig{
			BaseURL:        "",
			MaxConcurrent:  6,
			Retries:        1,
			BackoffBase:    time.Second,
			DefaultTimeout: 30 * time.Second,
			Timeouts: map[string]time.Duration{
				"/api/summary":        10 * time.Second,
				"/api/distinct":       10 * time.Second,
				"/api/health":         5 * time.Second,
				"/api/dashboard-data": 45 * time.Second,
				"/api/aggregate":      30 * time.Second,
				"/api/stats":          40 * time.Second,
				"/api/sla":            45 * time.Second,
			},
			RateLimit: 0, // unlimited
			RateBurst: 10,
			Breaker: BreakerConfig{
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      30 * time.Second,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              3000,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second, // covers the slowest loader timeout
			IdleTimeout:       2 * time.Minute,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Events: EventsConfig{
			Topic:      "dashboard.events",
			Forward:    append([]string(nil), DefaultForwardTopics...),
			BufferSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Default returns the built-in configuration, without file or environment
// overrides.
func Default() *Config {
	return defaultConfig()
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// CACHE_DEFAULT_TTL -> cache.default_ttl
	// HTTP_PORT -> server.port
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
	"filters.invalidate_keys",
	"events.forward",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Cache
	"cache_default_ttl":       "cache.default_ttl",
	"cache_persist_threshold": "cache.persist_threshold",

	// Persistent mirror
	"persist_path":           "persist.path",
	"persist_in_memory":      "persist.in_memory",
	"persist_quota_bytes":    "persist.quota_bytes",
	"persist_prefix":         "persist.prefix",
	"persist_sweep_interval": "persist.sweep_interval",
	"persist_sync_writes":    "persist.sync_writes",

	// Filters
	"filters_persist":         "filters.persist",
	"filters_restore":         "filters.restore",
	"filters_storage_key":     "filters.storage_key",
	"filters_reload_delay":    "filters.reload_delay",
	"filters_page_debounce":   "filters.page_debounce",
	"filters_invalidate_keys": "filters.invalidate_keys",

	// Crossfilter
	"crossfilter_debounce": "crossfilter.debounce",

	// Loader
	"api_base_url":                 "loader.base_url",
	"loader_max_concurrent":        "loader.max_concurrent",
	"loader_retries":               "loader.retries",
	"loader_backoff_base":          "loader.backoff_base",
	"loader_default_timeout":       "loader.default_timeout",
	"loader_rate_limit":            "loader.rate_limit",
	"loader_rate_burst":            "loader.rate_burst",
	"loader_breaker_max_requests":  "loader.breaker.max_requests",
	"loader_breaker_interval":      "loader.breaker.interval",
	"loader_breaker_timeout":       "loader.breaker.timeout",
	"loader_breaker_min_requests":  "loader.breaker.min_requests",
	"loader_breaker_failure_ratio": "loader.breaker.failure_ratio",

	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",

	// Events
	"events_topic":       "events.topic",
	"events_forward":     "events.forward",
	"events_buffer_size": "events.buffer_size",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, so unrelated environment
// variables never pollute the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
