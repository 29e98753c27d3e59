// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package persist

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMirrorRoundTrip(t *testing.T) {
	clock := newClock()
	m := NewMirror(NewMemoryStorage(0), MirrorConfig{Now: clock.Now})

	type distrito struct {
		Nome  string `json:"nome"`
		Total int    `json:"total"`
	}
	in := []distrito{{"Centro", 12}, {"Norte", 7}}

	if !m.Set("/api/distritos", in, 30*time.Minute) {
		t.Fatal("Set returned false")
	}

	rec, ok := m.Get("/api/distritos", 0)
	if !ok {
		t.Fatal("expected a hit")
	}
	if rec.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %d", rec.SchemaVersion)
	}
	if rec.TTL != (30 * time.Minute).Milliseconds() {
		t.Errorf("TTL = %d", rec.TTL)
	}
	var out []distrito
	if err := rec.Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("decoded %+v, want %+v", out, in)
	}
	if keys := m.Keys(); len(keys) != 1 || keys[0] != "/api/distritos" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestMirrorExpiry(t *testing.T) {
	clock := newClock()
	store := NewMemoryStorage(0)
	m := NewMirror(store, MirrorConfig{Now: clock.Now})

	m.Set("k", "v", 10*time.Minute)

	clock.Advance(10*time.Minute - time.Millisecond)
	if _, ok := m.Get("k", 0); !ok {
		t.Fatal("record should be live just before its TTL")
	}

	clock.Advance(time.Millisecond)
	if _, ok := m.Get("k", 0); ok {
		t.Fatal("record should be expired at its TTL")
	}
	if _, err := store.GetItem(DefaultPrefix + "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired record should be removed, got err=%v", err)
	}
}

func TestMirrorTTLOverride(t *testing.T) {
	clock := newClock()
	m := NewMirror(NewMemoryStorage(0), MirrorConfig{Now: clock.Now})

	m.Set("k", 1, 30*time.Minute)
	clock.Advance(11 * time.Minute)

	if _, ok := m.Get("k", 10*time.Minute); ok {
		t.Error("override TTL should win over the stored TTL")
	}
}

func TestMirrorDiscardsLegacyAndCorruptRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"legacy without version", `{"data":{"total":1},"timestamp":1,"ttl":600000}`},
		{"foreign version", `{"schemaVersion":99,"data":1,"timestamp":1,"ttl":600000}`},
		{"not json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStorage(0)
			m := NewMirror(store, MirrorConfig{Now: newClock().Now})
			if err := store.SetItem(DefaultPrefix+"k", []byte(tt.raw)); err != nil {
				t.Fatal(err)
			}

			if _, ok := m.Get("k", 0); ok {
				t.Fatal("expected a miss")
			}
			if _, err := store.GetItem(DefaultPrefix + "k"); !errors.Is(err, ErrNotFound) {
				t.Errorf("record should be discarded, got err=%v", err)
			}
		})
	}
}

func TestMirrorRejectsUnencodableValue(t *testing.T) {
	m := NewMirror(NewMemoryStorage(0), MirrorConfig{})
	if m.Set("k", make(chan int), time.Hour) {
		t.Error("Set of a channel should report false")
	}
	if _, ok := m.Get("k", 0); ok {
		t.Error("nothing should be stored")
	}
}

func TestMirrorQuotaEvictionRetry(t *testing.T) {
	clock := newClock()
	store := NewMemoryStorage(800)
	m := NewMirror(store, MirrorConfig{Now: clock.Now})

	payload := strings.Repeat("x", 150)
	m.Set("old-a", payload, time.Minute)
	m.Set("old-b", payload, time.Minute)
	m.Set("fresh", payload, time.Hour)

	clock.Advance(2 * time.Minute)

	if !m.Set("new", payload, time.Hour) {
		t.Fatal("write should succeed after evicting expired records")
	}
	if _, ok := m.Get("new", 0); !ok {
		t.Error("new record should be present")
	}
	if _, ok := m.Get("fresh", 0); !ok {
		t.Error("unexpired record should survive the sweep")
	}
	for _, k := range []string{"old-a", "old-b"} {
		if _, err := store.GetItem(DefaultPrefix + k); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s should have been evicted", k)
		}
	}
}

func TestMirrorQuotaDropsWhenNothingToEvict(t *testing.T) {
	store := NewMemoryStorage(100)
	m := NewMirror(store, MirrorConfig{Now: newClock().Now})

	if m.Set("big", strings.Repeat("x", 500), time.Hour) {
		t.Error("oversized record should be dropped")
	}
	if store.Used() != 0 {
		t.Errorf("Used = %d, want 0", store.Used())
	}
}

func TestMirrorClearOnlyTouchesPrefix(t *testing.T) {
	store := NewMemoryStorage(0)
	m := NewMirror(store, MirrorConfig{})

	m.Set("a", 1, time.Hour)
	m.Set("b", 2, time.Hour)
	if err := store.SetItem("dashboardFilters", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}

	if n := m.Clear(); n != 2 {
		t.Errorf("Clear removed %d, want 2", n)
	}
	if _, err := store.GetItem("dashboardFilters"); err != nil {
		t.Errorf("unrelated key should survive: %v", err)
	}
}

func TestMirrorSweep(t *testing.T) {
	clock := newClock()
	store := NewMemoryStorage(0)
	m := NewMirror(store, MirrorConfig{Now: clock.Now})

	m.Set("short", 1, time.Minute)
	m.Set("long", 2, time.Hour)
	_ = store.SetItem(DefaultPrefix+"legacy", []byte(`{"data":1,"timestamp":0,"ttl":1}`))

	clock.Advance(5 * time.Minute)

	if n := m.Sweep(); n != 2 {
		t.Errorf("Sweep removed %d, want 2", n)
	}
	if keys := m.Keys(); len(keys) != 1 || keys[0] != "long" {
		t.Errorf("remaining keys = %v", keys)
	}
}

func TestRecordWithoutTTLNeverExpires(t *testing.T) {
	r := Record{SchemaVersion: SchemaVersion, Timestamp: 0, TTL: 0}
	if r.Expired(time.Now(), 0) {
		t.Error("zero TTL record should never expire")
	}
}
