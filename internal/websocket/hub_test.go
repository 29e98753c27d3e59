// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package websocket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ouvidoria/internal/filter"
)

// setupHub creates a hub and runs it until the test ends.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// createTestClient creates a client with no connection.
func createTestClient(hub *Hub) *Client {
	return &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, clientBuffer)}
}

// registerClient registers a client and waits for the hub to see it.
func registerClient(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	hub.Register <- client
	waitFor(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.clients[client]
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("client queue closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(HubConfig{})
	if cap(hub.broadcast) != DefaultBufferSize {
		t.Errorf("broadcast buffer = %d, want %d", cap(hub.broadcast), DefaultBufferSize)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d", hub.ClientCount())
	}

	hub = NewHub(HubConfig{BufferSize: 4})
	if cap(hub.broadcast) != 4 {
		t.Errorf("broadcast buffer = %d, want 4", cap(hub.broadcast))
	}
	if hub.String() != "websocket-hub" {
		t.Errorf("String() = %q", hub.String())
	}
}

func TestHub_ClientRegistration(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(t, hub, client)

	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister <- client
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	if _, ok := <-client.send; ok {
		t.Error("unregister should close the client queue")
	}
}

func TestHub_UnregisterUnknownClient(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)

	hub.Unregister <- client
	registerClient(t, hub, createTestClient(hub))

	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}
	// The unknown client's queue stays open.
	if !client.Send(Message{Type: "x"}) {
		t.Error("queue of an unknown client should stay open")
	}
}

func TestHub_BroadcastToClients(t *testing.T) {
	hub := setupHub(t)

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = createTestClient(hub)
		registerClient(t, hub, clients[i])
	}

	if !hub.BroadcastJSON("filter:applied", map[string]string{"field": "Status"}) {
		t.Fatal("broadcast dropped")
	}
	for i, c := range clients {
		msg := receive(t, c)
		if msg.Type != "filter:applied" {
			t.Errorf("client %d got type %q", i, msg.Type)
		}
		if msg.At.IsZero() {
			t.Errorf("client %d message has no timestamp", i)
		}
	}
}

func TestHub_FilterIndicator(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(t, hub, client)

	e := filter.New(filter.Config{Indicator: hub.FilterIndicator()})
	e.Apply("Status", "Aberto", "chartStatus")

	msg := receive(t, client)
	if msg.Type != MessageTypeFilterState {
		t.Fatalf("type = %q, want %q", msg.Type, MessageTypeFilterState)
	}
	snap, ok := msg.Data.(filter.Snapshot)
	if !ok {
		t.Fatalf("data = %T, want filter.Snapshot", msg.Data)
	}
	if snap.Generation != 1 || snap.ActiveValue != "Aberto" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := setupHub(t)
	slow := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan Message, 1)}
	fast := createTestClient(hub)
	registerClient(t, hub, slow)
	registerClient(t, hub, fast)

	hub.BroadcastJSON("a", nil)
	hub.BroadcastJSON("b", nil)

	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	if receive(t, fast).Type != "a" || receive(t, fast).Type != "b" {
		t.Error("fast client should receive both messages in order")
	}
}

func TestHub_BroadcastQueueFull(t *testing.T) {
	// Not served, so the queue is never drained.
	hub := NewHub(HubConfig{BufferSize: 1})
	if !hub.BroadcastJSON("a", nil) {
		t.Fatal("first broadcast should be queued")
	}
	if hub.BroadcastJSON("b", nil) {
		t.Error("second broadcast should be dropped")
	}
}

func TestHub_BroadcastRaw(t *testing.T) {
	hub := setupHub(t)
	client := createTestClient(hub)
	registerClient(t, hub, client)

	body := []byte(`{"type":"crossfilter:changed","data":{"active":1},"at":"2026-01-02T03:04:05Z"}`)
	if err := hub.BroadcastRaw(body); err != nil {
		t.Fatal(err)
	}
	msg := receive(t, client)
	if msg.Type != "crossfilter:changed" {
		t.Errorf("type = %q", msg.Type)
	}
	raw, ok := msg.Data.(json.RawMessage)
	if !ok || string(raw) != `{"active":1}` {
		t.Errorf("data = %#v", msg.Data)
	}
	if want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC); !msg.At.Equal(want) {
		t.Errorf("at = %v, want %v", msg.At, want)
	}

	if err := hub.BroadcastRaw([]byte(`{"data":1}`)); !errors.Is(err, errMissingType) {
		t.Errorf("missing type error = %v", err)
	}
	if err := hub.BroadcastRaw([]byte(`nope`)); err == nil {
		t.Error("invalid JSON should fail")
	}
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := setupHub(t)
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			hub.Register <- createTestClient(hub)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			hub.BroadcastJSON("test", map[string]int{"i": i})
			time.Sleep(time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			hub.ClientCount()
		}
	}()
	wg.Wait()

	waitFor(t, func() bool { return hub.ClientCount() == 10 })
}

func TestHub_ServeShutdown(t *testing.T) {
	hub := NewHub(HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.Serve(ctx) }()

	client := createTestClient(hub)
	hub.Register <- client
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	if hub.ClientCount() != 0 {
		t.Error("shutdown should close every client")
	}
	if _, ok := <-client.send; ok {
		t.Error("client queue should be closed")
	}
}

func TestMarshalMessage(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		want    string
	}{
		{"ping", Message{Type: MessageTypePing}, `"type":"ping"`},
		{"string data", Message{Type: "test", Data: "hello"}, `"data":"hello"`},
		{"raw data", Message{Type: "filter:cleared", Data: json.RawMessage(`{"generation":3}`)}, `"data":{"generation":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalMessage(tt.message)
			if err != nil {
				t.Fatalf("MarshalMessage() error = %v", err)
			}
			if !json.Valid(data) {
				t.Fatalf("invalid JSON %s", data)
			}
			if !strings.Contains(string(data), tt.want) {
				t.Errorf("%s lacks %s", data, tt.want)
			}
		})
	}
}
