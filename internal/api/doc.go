// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

/*
Package api exposes the dashboard core over HTTP with a chi router.

Every JSON endpoint answers with the same envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "...", "generation": 4}}
	{"success": false, "error": {"code": "VALIDATION_ERROR", "message": "...", "details": {...}}, "meta": {...}}

Routes

	GET    /health                          liveness plus loader breaker state
	GET    /metrics                         Prometheus exposition
	GET    /ws                              event stream (see package websocket)

	GET    /api/v1/stats                    summary of every component
	PUT    /api/v1/page                     current page, used by page watchers

	GET    /api/v1/cache/stats              store statistics
	GET    /api/v1/cache/entry?key=         fresh value of a key
	PUT    /api/v1/cache/entry              store a value
	POST   /api/v1/cache/invalidate         mark keys stale (all when none given)
	DELETE /api/v1/cache[?key=]             remove a key, or everything

	GET    /api/v1/filters                  global filter snapshot
	POST   /api/v1/filters                  apply a clause (toggle semantics)
	DELETE /api/v1/filters                  clear every clause
	DELETE /api/v1/filters/clause?field=&value=
	GET    /api/v1/filters/active?field=&value=
	GET    /api/v1/filters/request          merged global and crossfilter clauses

	GET    /api/v1/crossfilter              active dimensions
	POST   /api/v1/crossfilter/toggle       toggle a dimension value
	DELETE /api/v1/crossfilter              clear every dimension
	POST   /api/v1/crossfilter/project      project a posted dashboard payload

	GET    /api/v1/charts[?field=]          registered charts
	GET    /api/v1/charts/mappings          static chart to field table
	GET    /api/v1/charts/{id}
	PUT    /api/v1/charts/{id}              register a chart
	DELETE /api/v1/charts/{id}
	GET    /api/v1/charts/{id}/mapping
	POST   /api/v1/charts/{id}/click        route a chart click

	POST   /api/v1/data/load                fetch endpoints through the loader
	GET    /api/v1/data/dashboard           dashboard payload, crossfilter applied

Every request gets an X-Request-ID and is counted by route pattern. Write
and load routes have their own rate limit tiers on top of the default one.
*/
package api
