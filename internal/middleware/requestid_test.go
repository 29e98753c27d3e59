// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/ouvidoria/internal/logging"
)

// captureIDs runs one request through RequestID and returns the response
// header plus the IDs the handler saw in its context.
func captureIDs(t *testing.T, header string) (response, requestID, correlationID string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = GetRequestID(r.Context())
		correlationID = logging.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/filters", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Header().Get(RequestIDHeader), requestID, correlationID
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	resp, reqID, corrID := captureIDs(t, "")

	if _, err := uuid.Parse(resp); err != nil {
		t.Errorf("response ID %q is not a UUID: %v", resp, err)
	}
	if reqID != resp {
		t.Errorf("context ID %q != response ID %q", reqID, resp)
	}
	if corrID != resp {
		t.Errorf("correlation ID %q != response ID %q", corrID, resp)
	}
}

func TestRequestID_PreservesUpstreamID(t *testing.T) {
	proxyID := uuid.New().String()
	resp, reqID, _ := captureIDs(t, proxyID)

	if resp != proxyID || reqID != proxyID {
		t.Errorf("got response %q context %q, want %q", resp, reqID, proxyID)
	}
}

func TestRequestID_RejectsUnsafeIDs(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"newline", "abc\ninjected"},
		{"tab", "abc\tdef"},
		{"delete", "abc\x7f"},
		{"oversized", strings.Repeat("a", maxRequestIDLen+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _, _ := captureIDs(t, tt.header)
			if resp == tt.header {
				t.Error("unsafe ID should be replaced")
			}
			if _, err := uuid.Parse(resp); err != nil {
				t.Errorf("replacement %q is not a UUID", resp)
			}
		})
	}
}

func TestGetRequestID(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("empty context gave %q", got)
	}
	ctx := context.WithValue(context.Background(), RequestIDKey, 42)
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("wrong type gave %q", got)
	}
	ctx = context.WithValue(context.Background(), RequestIDKey, "req-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q", got)
	}
}

func TestRequestID_Unique(t *testing.T) {
	const n = 50
	var (
		mu   sync.Mutex
		seen = make(map[string]bool, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _, _ := captureIDs(t, "")
			mu.Lock()
			seen[resp] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Errorf("got %d unique IDs from %d requests", len(seen), n)
	}
}
