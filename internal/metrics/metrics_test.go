// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/filters", "200"))
	RecordAPIRequest("GET", "/api/v1/filters", 200, 3*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/filters", "200"))
	if after-before != 1 {
		t.Errorf("APIRequestsTotal delta = %v, want 1", after-before)
	}
}

func TestRecordLoaderRequest(t *testing.T) {
	tests := []struct {
		name   string
		status int
		label  string
	}{
		{"success", 200, "200"},
		{"upstream failure", 503, "503"},
		{"transport error", 0, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := LoaderRequests.WithLabelValues("/api/summary", tt.label)
			before := testutil.ToFloat64(c)
			RecordLoaderRequest("/api/summary", tt.status, time.Millisecond)
			if got := testutil.ToFloat64(c) - before; got != 1 {
				t.Errorf("LoaderRequests{%s} delta = %v, want 1", tt.label, got)
			}
		})
	}
}
