// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package config

import (
	"fmt"
	"strings"
	"time"
)

// knownClasses are the TTL class names the cache policy understands.
var knownClasses = map[string]bool{
	"static":     true,
	"semiStatic": true,
	"dynamic":    true,
}

// Validate rejects impossible values.
func (c *Config) Validate() error {
	if err := c.validateCache(); err != nil {
		return err
	}

	if err := c.validatePersist(); err != nil {
		return err
	}

	if err := c.validateFilters(); err != nil {
		return err
	}

	if c.Crossfilter.Debounce <= 0 {
		return fmt.Errorf("CROSSFILTER_DEBOUNCE must be positive")
	}

	if err := c.validateLoader(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if c.Events.BufferSize < 0 {
		return fmt.Errorf("EVENTS_BUFFER_SIZE must not be negative")
	}

	return c.validateLogging()
}

func (c *Config) validateCache() error {
	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive")
	}
	if c.Cache.PersistThreshold <= 0 {
		return fmt.Errorf("CACHE_PERSIST_THRESHOLD must be positive")
	}
	for name, ttl := range c.Cache.ClassTTLs {
		if !knownClasses[name] {
			return fmt.Errorf("cache class %q is unknown (valid: static, semiStatic, dynamic)", name)
		}
		if err := positive("cache class "+name, ttl); err != nil {
			return err
		}
	}
	for key, ttl := range c.Cache.ExactTTLs {
		if err := positive("cache key "+key, ttl); err != nil {
			return err
		}
	}
	for pattern, ttl := range c.Cache.PatternTTLs {
		if err := positive("cache pattern "+pattern, ttl); err != nil {
			return err
		}
	}
	for rule, class := range c.Cache.ClassRules {
		if !knownClasses[class] {
			return fmt.Errorf("cache rule %q names unknown class %q", rule, class)
		}
		if _, ok := c.Cache.ClassTTLs[class]; !ok {
			return fmt.Errorf("cache rule %q names class %q which has no TTL", rule, class)
		}
	}
	return nil
}

func (c *Config) validatePersist() error {
	if !c.Persist.InMemory && c.Persist.Path == "" {
		return fmt.Errorf("PERSIST_PATH is required unless PERSIST_IN_MEMORY=true")
	}
	if c.Persist.QuotaBytes < 0 {
		return fmt.Errorf("PERSIST_QUOTA_BYTES must not be negative")
	}
	if c.Persist.SweepInterval <= 0 {
		return fmt.Errorf("PERSIST_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateFilters() error {
	if c.Filters.Persist && c.Filters.StorageKey == "" {
		return fmt.Errorf("FILTERS_STORAGE_KEY is required when FILTERS_PERSIST=true")
	}
	if c.Filters.ReloadDelay <= 0 {
		return fmt.Errorf("FILTERS_RELOAD_DELAY must be positive")
	}
	if c.Filters.PageDebounce <= 0 {
		return fmt.Errorf("FILTERS_PAGE_DEBOUNCE must be positive")
	}
	return nil
}

func (c *Config) validateLoader() error {
	l := c.Loader
	if l.BaseURL != "" {
		if err := validateHTTPURL(l.BaseURL, "API_BASE_URL"); err != nil {
			return err
		}
	}
	if l.MaxConcurrent < 1 {
		return fmt.Errorf("LOADER_MAX_CONCURRENT must be at least 1")
	}
	if l.Retries < 0 || l.Retries > 10 {
		return fmt.Errorf("LOADER_RETRIES must be between 0 and 10")
	}
	if l.BackoffBase <= 0 {
		return fmt.Errorf("LOADER_BACKOFF_BASE must be positive")
	}
	if l.DefaultTimeout <= 0 {
		return fmt.Errorf("LOADER_DEFAULT_TIMEOUT must be positive")
	}
	for pattern, d := range l.Timeouts {
		if err := positive("loader timeout "+pattern, d); err != nil {
			return err
		}
	}
	if l.RateLimit < 0 {
		return fmt.Errorf("LOADER_RATE_LIMIT must not be negative")
	}
	if l.Breaker.FailureRatio <= 0 || l.Breaker.FailureRatio > 1 {
		return fmt.Errorf("LOADER_BREAKER_FAILURE_RATIO must be in (0, 1]")
	}
	if l.Breaker.Timeout <= 0 {
		return fmt.Errorf("LOADER_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP read and write timeouts must be positive")
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

func positive(what string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s: TTL must be positive, got %v", what, d)
	}
	return nil
}
