// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package loader

import (
	"strings"
	"time"
)

// TimeoutRule applies Timeout to endpoints containing Pattern.
type TimeoutRule struct {
	Pattern string        `koanf:"pattern"`
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultTimeout applies when no rule matches.
const DefaultTimeout = 30 * time.Second

// DefaultTimeoutRules sizes timeouts to how heavy each endpoint is. Rules
// are checked in order; the first match wins.
func DefaultTimeoutRules() []TimeoutRule {
	return []TimeoutRule{
		{Pattern: "/api/summary", Timeout: 10 * time.Second},
		{Pattern: "/api/distinct", Timeout: 10 * time.Second},
		{Pattern: "/api/health", Timeout: 5 * time.Second},
		{Pattern: "/api/dashboard-data", Timeout: 45 * time.Second},
		{Pattern: "/api/aggregate", Timeout: 30 * time.Second},
		{Pattern: "/api/stats", Timeout: 40 * time.Second},
		{Pattern: "/api/sla", Timeout: 45 * time.Second},
	}
}

func timeoutFor(rules []TimeoutRule, fallback time.Duration, endpoint string) time.Duration {
	for _, r := range rules {
		if strings.Contains(endpoint, r.Pattern) {
			return r.Timeout
		}
	}
	return fallback
}

// backoffDelay is base * 2^attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<uint(attempt))
}
