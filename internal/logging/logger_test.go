// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, `"level":"info"`) {
		t.Errorf("expected output to contain level, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
	if ValidLevel("bogus") {
		t.Error("ValidLevel(bogus) should be false")
	}
	if !ValidLevel("warn") {
		t.Error("ValidLevel(warn) should be true")
	}
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	nop := OrNop(nil)
	if nop.GetLevel() != zerolog.Disabled {
		t.Errorf("OrNop(nil) level = %v, want disabled", nop.GetLevel())
	}

	var buf bytes.Buffer
	l := NewTestLogger(&buf)
	got := OrNop(&l)
	got.Warn().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("OrNop(&l) should write through l, got %q", buf.String())
	}
}

func TestSuccess(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	Success(NewTestLogger(&buf)).Msg("stored")
	if !strings.Contains(buf.String(), `"status":"ok"`) {
		t.Errorf("expected status=ok, got %s", buf.String())
	}
}

func TestCtxCorrelationID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithCorrelationID(ctx, "abc12345")

	if got := CorrelationIDFromContext(ctx); got != "abc12345" {
		t.Errorf("CorrelationIDFromContext = %q", got)
	}
	Ctx(ctx).Info().Msg("with id")
	if !strings.Contains(buf.String(), `"correlation_id":"abc12345"`) {
		t.Errorf("expected correlation_id field, got %s", buf.String())
	}
	if id := GenerateCorrelationID(); len(id) != 8 {
		t.Errorf("GenerateCorrelationID length = %d, want 8", len(id))
	}
}

func TestSlogAdapter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := NewSlogLogger(NewTestLogger(&buf))
	slogger.WithGroup("tree").Info("service started", "service", "sweeper")

	out := buf.String()
	if !strings.Contains(out, "service started") {
		t.Errorf("missing message: %s", out)
	}
	if !strings.Contains(out, `"tree.service":"sweeper"`) {
		t.Errorf("missing grouped attr: %s", out)
	}
}
