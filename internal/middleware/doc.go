// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

/*
Package middleware holds the HTTP middleware shared by the API router.

  - RequestID assigns every request an ID (reusing a safe X-Request-ID from
    an upstream proxy) and stores it as the logging correlation ID.
  - PrometheusMetrics records request counts and latencies labelled by the
    chi route pattern, and logs requests slower than SlowRequestThreshold.

Both are plain func(http.Handler) http.Handler and plug into chi.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

Compression and panic recovery come from chi's own middleware package.
*/
package middleware
