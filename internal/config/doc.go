// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

/*
Package config provides layered configuration for the dashboard core.

# Configuration Sources

Values are layered with Koanf v2, later layers winning:
  - Built-in defaults (defaultConfig)
  - YAML file: CONFIG_PATH, config.yaml, or /etc/ouvidoria/config.yaml
  - Mapped environment variables

# Configuration Structure

  - CacheConfig: TTL table of the key-value store and the persist threshold
  - PersistConfig: Badger directory, quota, key prefix and sweep interval
  - FiltersConfig: global filter persistence, reload debounce, invalidated keys
  - CrossfilterConfig: listener debounce
  - LoaderConfig: aggregation API URL, concurrency, retries, timeouts, breaker
  - ServerConfig: HTTP listener, CORS origins, rate limiting
  - EventsConfig: bus topics forwarded to WebSocket clients
  - LoggingConfig: level, format, caller

# Environment Variables

Cache:
  - CACHE_DEFAULT_TTL: fallback TTL (default: 5s)
  - CACHE_PERSIST_THRESHOLD: minimum TTL for write-through (default: 10m)

Persistent mirror:
  - PERSIST_PATH: Badger directory (default: /data/ouvidoria)
  - PERSIST_IN_MEMORY: keep the mirror in RAM (default: false)
  - PERSIST_QUOTA_BYTES: storage budget (default: 5MiB)
  - PERSIST_SWEEP_INTERVAL: expired record sweep (default: 5m)

Filters:
  - FILTERS_PERSIST: save the clause list (default: true)
  - FILTERS_RESTORE: restore the last clause at startup (default: false)
  - FILTERS_RELOAD_DELAY: reload hook debounce (default: 100ms)
  - FILTERS_PAGE_DEBOUNCE: page reload debounce (default: 500ms)
  - FILTERS_INVALIDATE_KEYS: comma-separated keys dropped on every change

Loader:
  - API_BASE_URL: aggregation API (empty disables loading)
  - LOADER_MAX_CONCURRENT: concurrent requests (default: 6)
  - LOADER_RETRIES: retries on timeout (default: 1)
  - LOADER_RATE_LIMIT: requests per second (default: unlimited)

Server:
  - HTTP_HOST, HTTP_PORT: listen address (default: 0.0.0.0:3000)
  - CORS_ORIGINS: comma-separated allowed origins (default: *)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Logging:
  - LOG_LEVEL: trace, debug, info, warn, error (default: info)
  - LOG_FORMAT: json or console (default: json)
  - LOG_CALLER: include caller (default: false)

# Validation

LoadWithKoanf validates the merged result and fails on non-positive TTLs,
unknown cache classes, a bad port, or an unknown log level.
*/
package config
