// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero default ttl", func(c *Config) { c.Cache.DefaultTTL = 0 }, "CACHE_DEFAULT_TTL"},
		{"unknown class", func(c *Config) { c.Cache.ClassTTLs["hourly"] = time.Hour }, "unknown"},
		{"negative exact ttl", func(c *Config) { c.Cache.ExactTTLs["/x"] = -time.Second }, "cache key /x"},
		{"rule names unknown class", func(c *Config) { c.Cache.ClassRules["/api/x"] = "weekly" }, "unknown class"},
		{"rule class without ttl", func(c *Config) { delete(c.Cache.ClassTTLs, "static") }, "has no TTL"},
		{"persist path missing", func(c *Config) { c.Persist.Path = "" }, "PERSIST_PATH"},
		{"in memory needs no path", func(c *Config) { c.Persist.Path = ""; c.Persist.InMemory = true }, ""},
		{"persisted filters need key", func(c *Config) { c.Filters.StorageKey = "" }, "FILTERS_STORAGE_KEY"},
		{"zero crossfilter debounce", func(c *Config) { c.Crossfilter.Debounce = 0 }, "CROSSFILTER_DEBOUNCE"},
		{"base url with path", func(c *Config) { c.Loader.BaseURL = "http://api.local/api" }, "API_BASE_URL"},
		{"base url scheme", func(c *Config) { c.Loader.BaseURL = "ftp://api.local" }, "API_BASE_URL"},
		{"zero concurrency", func(c *Config) { c.Loader.MaxConcurrent = 0 }, "LOADER_MAX_CONCURRENT"},
		{"failure ratio above one", func(c *Config) { c.Loader.Breaker.FailureRatio = 1.5 }, "FAILURE_RATIO"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"rate limit disabled skips checks", func(c *Config) { c.Server.RateLimitDisabled = true; c.Server.RateLimitReqs = 0 }, ""},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 3000}
	if got := s.Addr(); got != "127.0.0.1:3000" {
		t.Errorf("Addr() = %q", got)
	}
}
