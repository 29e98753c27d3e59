// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

/*
Package main is the Ouvidoria server: the ombudsman dashboard data core
behind an HTTP and WebSocket API.

# Architecture

	root ("ouvidoria")
	├── storage-layer
	│   └── mirror-sweeper
	├── messaging-layer
	│   ├── websocket-hub
	│   ├── event-bridge
	│   └── websocket-forwarder
	└── api-layer
	    └── http-server

Startup order:

 1. Configuration: koanf v2 defaults, then config.yaml, then environment
 2. Logging: zerolog, format and level from config
 3. Storage: BadgerDB (on disk or in memory) behind the persistent mirror
 4. Dashboard core: event bus, store, filters, crossfilter, registry, loader
 5. Events: bus bridge to a watermill gochannel topic, forwarded to WebSocket clients
 6. HTTP: chi router, served under the supervisor tree

# Configuration

Common environment variables:

	API_BASE_URL        aggregation API; empty disables loading
	HTTP_HOST, HTTP_PORT
	PERSIST_PATH        Badger directory
	PERSIST_IN_MEMORY   keep the mirror in RAM only
	FILTERS_RESTORE     restore the last persisted filters at startup
	CORS_ORIGINS        comma-separated allowed origins
	LOG_LEVEL, LOG_FORMAT

CONFIG_PATH points at an explicit config file.

# Signals

SIGINT and SIGTERM cancel the root context. The HTTP server drains for
server.shutdown_timeout, then the WebSocket hub closes every client and
storage is closed.
*/
package main
