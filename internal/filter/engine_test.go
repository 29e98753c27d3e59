// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package filter

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/ouvidoria/internal/cache"
	"github.com/tomtom215/ouvidoria/internal/eventbus"
	"github.com/tomtom215/ouvidoria/internal/persist"
)

type recordingInvalidator struct {
	calls [][]string
}

func (r *recordingInvalidator) Invalidate(keys ...string) {
	r.calls = append(r.calls, append([]string(nil), keys...))
}

type recordingIndicator struct {
	snaps []Snapshot
}

func (r *recordingIndicator) Update(s Snapshot) {
	r.snaps = append(r.snaps, s)
}

func topicsOf(events []eventbus.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Topic
	}
	return out
}

func recordBus(t *testing.T) (*eventbus.Bus, *[]eventbus.Event) {
	t.Helper()
	bus := eventbus.New()
	var events []eventbus.Event
	bus.On(eventbus.Wildcard, func(e eventbus.Event) { events = append(events, e) })
	return bus, &events
}

func TestApplyTwiceIsIdentity(t *testing.T) {
	e := New(Config{})

	if got := e.Apply("Status", "Aberto", "chartStatus"); got != ResultApplied {
		t.Fatalf("first Apply = %s, want applied", got)
	}
	if !e.IsActive("Status", "Aberto") {
		t.Fatal("clause should be active after first apply")
	}
	if got := e.Apply("Status", "Aberto", "chartStatus"); got != ResultCleared {
		t.Fatalf("second Apply = %s, want cleared", got)
	}
	if n := len(e.Filters()); n != 0 {
		t.Errorf("clauses after toggle = %d, want 0", n)
	}
	if _, _, ok := e.Active(); ok {
		t.Error("no field should be active after toggle")
	}
}

func TestApplyClearsPrevious(t *testing.T) {
	e := New(Config{})

	e.Apply("Status", "Aberto", "")
	e.Apply("Tema", "Limpeza", "")

	want := []Clause{{Field: "Tema", Value: "Limpeza", Operator: OpEq}}
	if got := e.Filters(); !reflect.DeepEqual(got, want) {
		t.Errorf("Filters() = %+v, want %+v", got, want)
	}
	field, value, ok := e.Active()
	if !ok || field != "Tema" || value != "Limpeza" {
		t.Errorf("Active() = %q, %q, %v", field, value, ok)
	}
}

func TestApplyClearPreviousEmitsSingleTerminalEvent(t *testing.T) {
	bus, events := recordBus(t)
	e := New(Config{Bus: bus})

	e.Apply("Status", "Aberto", "")
	e.Apply("Tipo", "Denúncia", "", ClearPrevious(false))
	*events = nil

	e.Apply("Tema", "Limpeza", "")

	want := []string{TopicUpdateRequested, TopicApplied}
	if got := topicsOf(*events); !reflect.DeepEqual(got, want) {
		t.Errorf("topics = %v, want %v", got, want)
	}
}

func TestApplyMultiDimensional(t *testing.T) {
	bus, events := recordBus(t)
	e := New(Config{Bus: bus})

	e.Apply("Status", "Aberto", "", ClearPrevious(false))
	e.Apply("Tema", "Limpeza", "", ClearPrevious(false))
	e.Apply("Orgaos", "SEMUS", "", ClearPrevious(false), WithOperator(OpContains))

	if n := len(e.Filters()); n != 3 {
		t.Fatalf("clauses = %d, want 3", n)
	}

	*events = nil
	if got := e.Apply("Tema", "Limpeza", "", ClearPrevious(false)); got != ResultRemoved {
		t.Fatalf("toggle of middle clause = %s, want removed", got)
	}
	want := []Clause{
		{Field: "Status", Value: "Aberto", Operator: OpEq},
		{Field: "Orgaos", Value: "SEMUS", Operator: OpContains},
	}
	if got := e.Filters(); !reflect.DeepEqual(got, want) {
		t.Errorf("Filters() = %+v, want %+v", got, want)
	}
	field, _, _ := e.Active()
	if field != "Orgaos" {
		t.Errorf("active field = %q, want the last remaining clause", field)
	}

	last := (*events)[len(*events)-1]
	ev, ok := last.Payload.(RemovedEvent)
	if last.Topic != TopicRemoved || !ok {
		t.Fatalf("terminal event = %s %T", last.Topic, last.Payload)
	}
	if ev.Field != "Tema" || len(ev.Filters) != 2 {
		t.Errorf("RemovedEvent = %+v", ev)
	}
}

func TestApplyWithoutToggle(t *testing.T) {
	e := New(Config{})

	e.Apply("Status", "Aberto", "")
	gen := e.Generation()

	if got := e.Apply("Status", "Aberto", "", Toggle(false), ClearPrevious(false)); got != ResultIgnored {
		t.Errorf("repeat without toggle = %s, want ignored", got)
	}
	if e.Generation() != gen {
		t.Error("ignored apply must not bump the generation")
	}

	if got := e.Apply("Status", "Aberto", "", Toggle(false)); got != ResultApplied {
		t.Errorf("repeat without toggle with clear previous = %s, want applied", got)
	}
	if n := len(e.Filters()); n != 1 {
		t.Errorf("clauses = %d, want 1", n)
	}
}

func TestApplyRejectsInvalidInput(t *testing.T) {
	bus, events := recordBus(t)
	e := New(Config{Bus: bus})

	tests := []struct {
		name  string
		field string
		value string
		opts  []ApplyOption
	}{
		{"missing field", "", "Aberto", nil},
		{"missing value", "Status", "", nil},
		{"bad operator", "Status", "Aberto", []ApplyOption{WithOperator("like")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Apply(tt.field, tt.value, "", tt.opts...); got != ResultIgnored {
				t.Errorf("Apply = %s, want ignored", got)
			}
		})
	}
	if len(*events) != 0 {
		t.Errorf("ignored applies emitted %v", topicsOf(*events))
	}
}

func TestRemoveAndClear(t *testing.T) {
	bus, events := recordBus(t)
	e := New(Config{Bus: bus})

	if e.Remove("Status", "Aberto") {
		t.Error("Remove of absent clause should report false")
	}
	if len(*events) != 0 {
		t.Error("Remove of absent clause should not emit")
	}

	e.Apply("Status", "Aberto", "")
	*events = nil
	if !e.Remove("Status", "Aberto") {
		t.Fatal("Remove should report true")
	}
	if got := topicsOf(*events); !reflect.DeepEqual(got, []string{TopicUpdateRequested, TopicRemoved}) {
		t.Errorf("Remove topics = %v", got)
	}
	if _, _, ok := e.Active(); ok {
		t.Error("removing the active clause should clear the active field")
	}

	*events = nil
	e.Clear()
	if got := topicsOf(*events); !reflect.DeepEqual(got, []string{TopicUpdateRequested, TopicCleared}) {
		t.Errorf("Clear topics = %v", got)
	}
}

func TestGenerationIsMonotonic(t *testing.T) {
	bus := eventbus.New()
	var gens []uint64
	bus.On(TopicUpdateRequested, func(ev eventbus.Event) {
		gens = append(gens, ev.Payload.(UpdateRequestedEvent).Generation)
	})
	e := New(Config{Bus: bus, PageID: func() string { return "page-main" }})

	e.Apply("Status", "Aberto", "")
	e.Apply("Tema", "Limpeza", "")
	e.Remove("Tema", "Limpeza")
	e.Clear()

	if !reflect.DeepEqual(gens, []uint64{1, 2, 3, 4}) {
		t.Errorf("generations = %v", gens)
	}
	if e.Snapshot().Generation != 4 {
		t.Errorf("Snapshot generation = %d", e.Snapshot().Generation)
	}
}

func TestUpdateRequestedPayload(t *testing.T) {
	bus := eventbus.New()
	var got UpdateRequestedEvent
	bus.On(TopicUpdateRequested, func(ev eventbus.Event) { got = ev.Payload.(UpdateRequestedEvent) })

	e := New(Config{Bus: bus, PageID: func() string { return "page-tema" }})
	e.Apply("Tema", "Limpeza", "chartTema")

	if got.PageID != "page-tema" || got.ActiveField != "Tema" || got.ActiveValue != "Limpeza" {
		t.Errorf("payload = %+v", got)
	}
	if len(got.Filters) != 1 || got.Filters[0].SourceID != "chartTema" {
		t.Errorf("payload filters = %+v", got.Filters)
	}
}

func TestMutationInvalidatesAndUpdatesIndicator(t *testing.T) {
	inv := &recordingInvalidator{}
	ind := &recordingIndicator{}
	e := New(Config{Invalidator: inv, Indicator: ind})

	e.Apply("Status", "Aberto", "")
	e.Clear()

	if len(inv.calls) != 2 {
		t.Fatalf("invalidations = %d, want 2", len(inv.calls))
	}
	if !reflect.DeepEqual(inv.calls[0], DefaultInvalidateKeys) {
		t.Errorf("invalidated keys = %v", inv.calls[0])
	}
	if len(ind.snaps) != 2 || len(ind.snaps[0].Filters) != 1 || len(ind.snaps[1].Filters) != 0 {
		t.Errorf("indicator snapshots = %+v", ind.snaps)
	}
}

func TestApplyInvalidatesCachedSummary(t *testing.T) {
	store := cache.New[map[string]int](cache.Options{})
	store.Set("/api/summary", map[string]int{"total": 100})

	e := New(Config{Invalidator: store})
	e.Apply("Status", "Concluído", "")

	if _, ok := store.Get("/api/summary"); ok {
		t.Error("/api/summary should miss right after a filter is applied")
	}
}

func TestReloadHookDebounced(t *testing.T) {
	var calls atomic.Int32
	e := New(Config{ReloadHook: func() { calls.Add(1) }, ReloadDelay: 20 * time.Millisecond})
	defer e.Close()

	e.Apply("Status", "Aberto", "", ClearPrevious(false))
	e.Apply("Tema", "Limpeza", "", ClearPrevious(false))
	e.Apply("Tipo", "Denúncia", "", ClearPrevious(false))

	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("reload hook calls = %d, want 1", n)
	}
}

func TestCloseCancelsPendingReload(t *testing.T) {
	var calls atomic.Int32
	e := New(Config{ReloadHook: func() { calls.Add(1) }, ReloadDelay: 20 * time.Millisecond})

	e.Apply("Status", "Aberto", "")
	e.Close()
	e.Apply("Tema", "Limpeza", "")

	time.Sleep(80 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Errorf("reload hook calls after Close = %d, want 0", n)
	}
}

func TestApplySnapshotReturnsProducedState(t *testing.T) {
	e := New(Config{})

	r, snap := e.ApplySnapshot("Status", "Aberto", "chartStatus")
	if r != ResultApplied {
		t.Fatalf("result = %s", r)
	}
	e.Apply("Tema", "Limpeza", "", ClearPrevious(false))

	want := Snapshot{
		Filters:     []Clause{{Field: "Status", Value: "Aberto", Operator: OpEq, SourceID: "chartStatus"}},
		ActiveField: "Status",
		ActiveValue: "Aberto",
		Generation:  1,
	}
	if !reflect.DeepEqual(snap, want) {
		t.Errorf("snapshot = %+v, want %+v", snap, want)
	}

	r, snap = e.ApplySnapshot("Status", "Aberto", "", Toggle(false), ClearPrevious(false))
	if r != ResultIgnored || snap.Generation != 2 || len(snap.Filters) != 2 {
		t.Errorf("ignored call = %s %+v, want the current state", r, snap)
	}
}

func TestSetIndicator(t *testing.T) {
	e := New(Config{})
	var got []Snapshot
	e.SetIndicator(IndicatorFunc(func(s Snapshot) { got = append(got, s) }))

	e.Apply("Status", "Aberto", "")
	e.SetIndicator(nil)
	e.Clear()

	if len(got) != 1 || got[0].ActiveValue != "Aberto" {
		t.Errorf("indicator snapshots = %+v", got)
	}
}

func TestIndicatorPanicIsolated(t *testing.T) {
	e := New(Config{Indicator: IndicatorFunc(func(Snapshot) { panic("boom") })})

	if got := e.Apply("Status", "Aberto", ""); got != ResultApplied {
		t.Errorf("Apply = %s, want applied despite indicator panic", got)
	}
}

func TestRequestReloadSharesDebounce(t *testing.T) {
	var calls atomic.Int32
	e := New(Config{ReloadHook: func() { calls.Add(1) }, ReloadDelay: 20 * time.Millisecond})
	defer e.Close()

	e.Apply("Status", "Aberto", "")
	e.RequestReload()
	e.RequestReload()

	time.Sleep(150 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("reload hook calls = %d, want 1", n)
	}
}

func TestDebouncedApplyLastCallWins(t *testing.T) {
	bus := eventbus.New()
	var applied atomic.Int32
	bus.On(TopicApplied, func(eventbus.Event) { applied.Add(1) })
	e := New(Config{Bus: bus})
	defer e.Close()

	if got := e.Apply("Status", "Aberto", "", Debounce(20*time.Millisecond)); got != ResultPending {
		t.Fatalf("first debounced Apply = %s, want pending", got)
	}
	if e.IsActive("Status", "Aberto") {
		t.Fatal("debounced clause should not be active yet")
	}
	e.Apply("Status", "Concluído", "", Debounce(20*time.Millisecond))

	time.Sleep(120 * time.Millisecond)
	got := e.Filters()
	if len(got) != 1 || got[0].Value != "Concluído" {
		t.Errorf("filters = %+v, want only the last debounced clause", got)
	}
	if n := applied.Load(); n != 1 {
		t.Errorf("applied events = %d, want 1", n)
	}
}

func TestDebouncedRepeatIsIdentity(t *testing.T) {
	e := New(Config{})
	defer e.Close()

	e.Apply("Status", "Aberto", "", Debounce(20*time.Millisecond))
	if got := e.Apply("Status", "Aberto", "", Debounce(20*time.Millisecond)); got != ResultIgnored {
		t.Errorf("repeated debounced Apply = %s, want ignored", got)
	}

	time.Sleep(120 * time.Millisecond)
	if len(e.Filters()) != 0 || e.Generation() != 0 {
		t.Errorf("state after double debounced click = %+v", e.Snapshot())
	}
}

func TestDebouncedRepeatOverOtherClauses(t *testing.T) {
	e := New(Config{})
	defer e.Close()
	e.Apply("Tema", "Saúde", "")

	e.Apply("Status", "Aberto", "", Debounce(20*time.Millisecond))
	if got := e.Apply("Status", "Aberto", "", Debounce(20*time.Millisecond)); got != ResultPending {
		t.Fatalf("repeat = %s; clearing Tema makes the pair more than a no-op", got)
	}

	time.Sleep(120 * time.Millisecond)
	got := e.Filters()
	if len(got) != 1 || got[0].Value != "Aberto" {
		t.Errorf("filters = %+v, want the single debounced clause", got)
	}
}

func TestCloseDropsDebouncedApply(t *testing.T) {
	e := New(Config{})

	e.Apply("Status", "Aberto", "", Debounce(20*time.Millisecond))
	e.Close()

	time.Sleep(80 * time.Millisecond)
	if e.Generation() != 0 {
		t.Error("debounced Apply ran after Close")
	}
}

func TestPersistence(t *testing.T) {
	storage := persist.NewMemoryStorage(0)
	e := New(Config{Persist: true, Storage: storage})

	e.Apply("Status", "Aberto", "", ClearPrevious(false))
	e.Apply("Tema", "Limpeza", "chartTema", ClearPrevious(false))

	b, err := storage.GetItem(DefaultStorageKey)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	rec, err := persist.DecodeRecord(b)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if rec.TTL != 0 {
		t.Errorf("record TTL = %d, want 0", rec.TTL)
	}
	var data persistedFilters
	if err := rec.Decode(&data); err != nil {
		t.Fatal(err)
	}
	if len(data.Filters) != 2 || data.ActiveField != "Tema" || data.ActiveValue != "Limpeza" {
		t.Errorf("persisted = %+v", data)
	}

	e.Clear()
	if _, err := storage.GetItem(DefaultStorageKey); !errors.Is(err, persist.ErrNotFound) {
		t.Errorf("empty list should delete the record, got err=%v", err)
	}
}

func TestConcurrentApplyPersistsFinalState(t *testing.T) {
	storage := persist.NewMemoryStorage(0)
	e := New(Config{Persist: true, Storage: storage})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				e.Apply("Tema", fmt.Sprintf("tema-%d-%d", w, i), fmt.Sprintf("chart%d", w))
			}
		}(w)
	}
	wg.Wait()

	final := e.Snapshot()
	if final.Generation != 200 {
		t.Fatalf("generation = %d, want 200", final.Generation)
	}
	b, err := storage.GetItem(DefaultStorageKey)
	if err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	rec, err := persist.DecodeRecord(b)
	if err != nil {
		t.Fatal(err)
	}
	var data persistedFilters
	if err := rec.Decode(&data); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(data.Filters, final.Filters) || data.ActiveValue != final.ActiveValue {
		t.Errorf("stored = %+v, want the final state %+v", data, final)
	}
}

func TestSaveSkipsOlderGeneration(t *testing.T) {
	storage := persist.NewMemoryStorage(0)
	e := New(Config{Persist: true, Storage: storage})

	_, older := e.ApplySnapshot("Status", "Aberto", "")
	e.Apply("Status", "Concluído", "")

	if err := e.save(older); err != nil {
		t.Fatal(err)
	}
	clause, ok := e.readStored()
	if !ok || clause.Value != "Concluído" {
		t.Errorf("stored clause = %+v, %v; an older snapshot must not overwrite a newer one", clause, ok)
	}
}

func TestLoadDiscardsByDefault(t *testing.T) {
	storage := persist.NewMemoryStorage(0)
	writer := New(Config{Persist: true, Storage: storage})
	writer.Apply("Status", "Aberto", "")

	e := New(Config{Persist: true, Storage: storage})
	if n := e.Load(false); n != 0 {
		t.Errorf("Load(false) restored %d", n)
	}
	if len(e.Filters()) != 0 {
		t.Error("engine should start empty")
	}
	if _, err := storage.GetItem(DefaultStorageKey); !errors.Is(err, persist.ErrNotFound) {
		t.Error("Load(false) should delete the stored record")
	}
}

func TestLoadRestoresMostRecent(t *testing.T) {
	storage := persist.NewMemoryStorage(0)
	writer := New(Config{Persist: true, Storage: storage})
	writer.Apply("Status", "Aberto", "", ClearPrevious(false))
	writer.Apply("Tema", "Limpeza", "chartTema", ClearPrevious(false))

	e := New(Config{Persist: true, Storage: storage})
	if n := e.Load(true); n != 1 {
		t.Fatalf("Load(true) restored %d, want 1", n)
	}
	want := []Clause{{Field: "Tema", Value: "Limpeza", Operator: OpEq, SourceID: "chartTema"}}
	if got := e.Filters(); !reflect.DeepEqual(got, want) {
		t.Errorf("Filters() = %+v, want %+v", got, want)
	}
	if e.Generation() != 1 {
		t.Errorf("Generation after restore = %d, want 1", e.Generation())
	}
}

func TestLoadDiscardsLegacyRecord(t *testing.T) {
	storage := persist.NewMemoryStorage(0)
	legacy := `{"filters":[{"field":"Status","value":"Aberto","operator":"eq"}],"activeField":"Status","activeValue":"Aberto"}`
	if err := storage.SetItem(DefaultStorageKey, []byte(legacy)); err != nil {
		t.Fatal(err)
	}

	e := New(Config{Storage: storage})
	if n := e.Load(true); n != 0 {
		t.Errorf("legacy record restored %d clauses", n)
	}
	if _, err := storage.GetItem(DefaultStorageKey); !errors.Is(err, persist.ErrNotFound) {
		t.Error("legacy record should be deleted")
	}
}

func TestSaveWithoutStorage(t *testing.T) {
	e := New(Config{})
	if err := e.Save(); !errors.Is(err, ErrNoStorage) {
		t.Errorf("Save() = %v, want ErrNoStorage", err)
	}
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in      string
		want    Operator
		wantErr bool
	}{
		{"", OpEq, false},
		{"eq", OpEq, false},
		{" Contains ", OpContains, false},
		{"in", OpIn, false},
		{"gte", OpGte, false},
		{"like", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOperator(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOperator(%q) err = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidOperator) {
			t.Errorf("ParseOperator(%q) err should wrap ErrInvalidOperator", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseOperator(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if len(Operators()) != 7 {
		t.Errorf("Operators() = %v", Operators())
	}
}
