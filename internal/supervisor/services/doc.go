// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package services adapts components whose lifecycle is not
// Serve(ctx) error to suture.Service: the HTTP server (ListenAndServe and
// Shutdown) and the event bus bridge (Start and Stop).
package services
