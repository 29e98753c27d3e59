// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package persist

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/metrics"
)

// DefaultPrefix namespaces cache records inside the shared storage.
const DefaultPrefix = "dashboard_cache_"

// MirrorConfig configures a Mirror.
type MirrorConfig struct {
	// Prefix namespaces every key. Default: DefaultPrefix
	Prefix string

	// Now is the clock. Default: time.Now
	Now func() time.Time

	Logger *zerolog.Logger
}

// Mirror stores cache entries as versioned records in a Storage. Every
// method absorbs storage faults: failures are logged and reported as misses
// or dropped writes, never returned.
type Mirror struct {
	storage Storage
	prefix  string
	now     func() time.Time
	logger  zerolog.Logger
}

// NewMirror wraps storage.
func NewMirror(storage Storage, cfg MirrorConfig) *Mirror {
	m := &Mirror{
		storage: storage,
		prefix:  cfg.Prefix,
		now:     cfg.Now,
		logger:  logging.OrNop(cfg.Logger),
	}
	if m.prefix == "" {
		m.prefix = DefaultPrefix
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Prefix returns the key namespace.
func (m *Mirror) Prefix() string {
	return m.prefix
}

// Get returns the live record for key. ttl, when positive, overrides the
// TTL stored in the record. Expired, legacy and unreadable records are
// removed and reported as misses.
func (m *Mirror) Get(key string, ttl time.Duration) (Record, bool) {
	if key == "" {
		return Record{}, false
	}
	full := m.prefix + key

	raw, err := m.storage.GetItem(full)
	if errors.Is(err, ErrNotFound) {
		return Record{}, false
	}
	if err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("persistent read failed")
		return Record{}, false
	}

	rec, err := DecodeRecord(raw)
	if err != nil {
		m.discard(full, discardReason(err))
		m.logger.Debug().Err(err).Str("key", key).Msg("discarded unreadable persistent record")
		return Record{}, false
	}
	if rec.Expired(m.now(), ttl) {
		m.discard(full, "expired")
		return Record{}, false
	}
	return rec, true
}

// Set writes value under key with the given TTL. On a quota failure it
// sweeps expired records and retries once. It reports whether the record
// was stored.
func (m *Mirror) Set(key string, value any, ttl time.Duration) bool {
	if key == "" {
		return false
	}

	rec, err := NewRecord(value, m.now(), ttl)
	if err != nil {
		metrics.MirrorWrites.WithLabelValues("error").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("value not persistable")
		return false
	}
	raw, err := EncodeRecord(rec)
	if err != nil {
		metrics.MirrorWrites.WithLabelValues("error").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("record not encodable")
		return false
	}

	full := m.prefix + key
	err = m.storage.SetItem(full, raw)
	if err == nil {
		metrics.MirrorWrites.WithLabelValues("ok").Inc()
		return true
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		metrics.MirrorWrites.WithLabelValues("error").Inc()
		m.logger.Warn().Err(err).Str("key", key).Msg("persistent write failed")
		return false
	}

	removed := m.Sweep()
	if err := m.storage.SetItem(full, raw); err != nil {
		metrics.MirrorWrites.WithLabelValues("dropped").Inc()
		m.logger.Warn().
			Err(err).
			Str("key", key).
			Int("swept", removed).
			Msg("persistent write dropped after eviction")
		return false
	}
	metrics.MirrorWrites.WithLabelValues("retried").Inc()
	m.logger.Debug().Str("key", key).Int("swept", removed).Msg("persistent write succeeded after eviction")
	return true
}

// Remove deletes the record for key.
func (m *Mirror) Remove(key string) {
	if key == "" {
		return
	}
	if err := m.storage.RemoveItem(m.prefix + key); err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("persistent remove failed")
	}
}

// Clear deletes every record under the prefix and returns how many it removed.
func (m *Mirror) Clear() int {
	keys, err := m.storage.Keys(m.prefix)
	if err != nil {
		m.logger.Warn().Err(err).Msg("persistent clear failed")
		return 0
	}
	n := 0
	for _, k := range keys {
		if err := m.storage.RemoveItem(k); err != nil {
			m.logger.Warn().Err(err).Str("key", k).Msg("persistent remove failed")
			continue
		}
		n++
	}
	return n
}

// Keys returns the stored keys without the prefix.
func (m *Mirror) Keys() []string {
	keys, err := m.storage.Keys(m.prefix)
	if err != nil {
		m.logger.Warn().Err(err).Msg("persistent key listing failed")
		return nil
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, m.prefix))
	}
	return out
}

// Sweep removes every expired, legacy or unreadable record under the
// prefix and returns how many it removed.
func (m *Mirror) Sweep() int {
	start := time.Now()
	defer func() {
		metrics.MirrorSweepDuration.Observe(time.Since(start).Seconds())
	}()

	keys, err := m.storage.Keys(m.prefix)
	if err != nil {
		m.logger.Warn().Err(err).Msg("persistent sweep failed to list keys")
		return 0
	}

	now := m.now()
	removed := 0
	for _, k := range keys {
		raw, err := m.storage.GetItem(k)
		if err != nil {
			continue
		}
		rec, err := DecodeRecord(raw)
		switch {
		case err != nil:
			if m.discard(k, discardReason(err)) {
				removed++
			}
		case rec.Expired(now, 0):
			if m.discard(k, "expired") {
				removed++
			}
		}
	}
	if removed > 0 {
		m.logger.Debug().Int("removed", removed).Int("scanned", len(keys)).Msg("persistent sweep")
	}
	return removed
}

func (m *Mirror) discard(fullKey, reason string) bool {
	if err := m.storage.RemoveItem(fullKey); err != nil {
		m.logger.Warn().Err(err).Str("key", fullKey).Msg("persistent remove failed")
		return false
	}
	metrics.MirrorEvictions.WithLabelValues(reason).Inc()
	return true
}
