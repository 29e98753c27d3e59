// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package persist

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// SchemaVersion is the current persisted record layout.
const SchemaVersion = 1

var (
	// ErrLegacyRecord marks a record written without a schema version.
	ErrLegacyRecord = errors.New("persist: record has no schema version")

	// ErrSchemaMismatch marks a record from another schema version.
	ErrSchemaMismatch = errors.New("persist: unsupported schema version")
)

// Record is the persisted envelope. Timestamp and TTL are milliseconds; a
// TTL of zero or less never expires.
type Record struct {
	SchemaVersion int             `json:"schemaVersion"`
	Data          json.RawMessage `json:"data"`
	Timestamp     int64           `json:"timestamp"`
	TTL           int64           `json:"ttl"`
}

// NewRecord encodes data into a current-version record stamped at now.
func NewRecord(data any, now time.Time, ttl time.Duration) (Record, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Record{}, fmt.Errorf("encode record data: %w", err)
	}
	return Record{
		SchemaVersion: SchemaVersion,
		Data:          raw,
		Timestamp:     now.UnixMilli(),
		TTL:           ttl.Milliseconds(),
	}, nil
}

// StoredAt returns the record timestamp.
func (r Record) StoredAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Expired reports whether the record is too old at now. A positive ttl
// overrides the record's own TTL.
func (r Record) Expired(now time.Time, ttl time.Duration) bool {
	limit := r.TTL
	if ttl > 0 {
		limit = ttl.Milliseconds()
	}
	if limit <= 0 {
		return false
	}
	return now.UnixMilli()-r.Timestamp >= limit
}

// Decode unmarshals the record data into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Data, v)
}

// EncodeRecord serializes r.
func EncodeRecord(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRecord parses b and rejects legacy or foreign-version records.
func DecodeRecord(b []byte) (Record, error) {
	var head struct {
		SchemaVersion *int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if head.SchemaVersion == nil {
		return Record{}, ErrLegacyRecord
	}
	if *head.SchemaVersion != SchemaVersion {
		return Record{}, fmt.Errorf("%w: %d", ErrSchemaMismatch, *head.SchemaVersion)
	}

	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}

// discardReason labels a DecodeRecord failure for metrics.
func discardReason(err error) string {
	switch {
	case errors.Is(err, ErrLegacyRecord), errors.Is(err, ErrSchemaMismatch):
		return "legacy"
	default:
		return "corrupt"
	}
}
