// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler is a slog.Handler writing through zerolog. sutureslog only
// speaks log/slog; this keeps supervisor events in the process log stream.
//
// Groups become dotted key prefixes: a "service" attr inside group
// "supervisor" is logged as "supervisor.service".
type SlogHandler struct {
	logger zerolog.Logger
	prefix string
}

// NewSlogLogger returns an slog.Logger writing through l.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSlogLogger(l zerolog.Logger) *slog.Logger {
	return slog.New(&SlogHandler{logger: l})
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	lvl := zerologLevel(level)
	return lvl >= h.logger.GetLevel() && lvl >= zerolog.GlobalLevel()
}

//nolint:gocritic // slog.Record is passed by value per slog.Handler interface
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(zerologLevel(record.Level))
	if record.NumAttrs() > 0 {
		fields := make(map[string]any, record.NumAttrs())
		record.Attrs(func(a slog.Attr) bool {
			flattenAttr(fields, h.prefix, a)
			return true
		})
		event = event.Fields(fields)
	}
	event.Msg(record.Message)
	return nil
}

// WithAttrs folds attrs into the zerolog context once instead of on every
// record.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	fields := make(map[string]any, len(attrs))
	for _, a := range attrs {
		flattenAttr(fields, h.prefix, a)
	}
	return &SlogHandler{
		logger: h.logger.With().Fields(fields).Logger(),
		prefix: h.prefix,
	}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, prefix: h.prefix + name + "."}
}

// flattenAttr writes a into dst under prefix. Nested groups extend the
// prefix; an inline group (empty key) does not.
func flattenAttr(dst map[string]any, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			flattenAttr(dst, p, ga)
		}
		return
	}
	dst[prefix+a.Key] = a.Value.Any()
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	case level >= slog.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
