// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// setupWebSocketServer upgrades every request and hands the server side of
// the connection to handler.
func setupWebSocketServer(t *testing.T, handler func(t *testing.T, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(t, conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// dialWebSocket opens the client side of a connection to server.
func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForChannel(t *testing.T, ch <-chan bool, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Errorf("%s: timeout", msg)
	}
}

func TestNewClient(t *testing.T) {
	hub := NewHub(HubConfig{})
	a := NewClient(hub, nil)
	b := NewClient(hub, nil)

	if b.ID() <= a.ID() {
		t.Errorf("ids should increase: %d then %d", a.ID(), b.ID())
	}
	if cap(a.send) != clientBuffer {
		t.Errorf("send capacity = %d, want %d", cap(a.send), clientBuffer)
	}
}

func TestClient_Constants(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod %v must be shorter than pongWait %v", pingPeriod, pongWait)
	}
	if writeWait != 10*time.Second {
		t.Errorf("writeWait = %v", writeWait)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	c := createTestClient(NewHub(HubConfig{}))
	close(c.send)
	if c.Send(Message{Type: "x"}) {
		t.Error("Send on a closed queue should report false")
	}
}

func TestClient_WritePump_SendMessage(t *testing.T) {
	hub := NewHub(HubConfig{})

	received := make(chan bool, 1)
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Errorf("read: %v", err)
			return
		}
		if msg.Type != "filter:applied" {
			t.Errorf("type = %q", msg.Type)
		}
		received <- true
	})

	client := NewClient(hub, dialWebSocket(t, server))
	go client.writePump()
	client.send <- Message{Type: "filter:applied", Data: map[string]string{"field": "Status"}}

	waitForChannel(t, received, "message not received")
	close(client.send)
}

func TestClient_WritePump_ChannelClose(t *testing.T) {
	hub := NewHub(HubConfig{})

	gotClose := make(chan bool, 1)
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		_, _, err := conn.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
			gotClose <- true
		}
	})

	client := NewClient(hub, dialWebSocket(t, server))
	done := make(chan struct{})
	go func() {
		client.writePump()
		close(done)
	}()
	close(client.send)

	waitForChannel(t, gotClose, "close frame not received")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("writePump did not return")
	}
}

func TestClient_PingPong(t *testing.T) {
	hub := setupHub(t)

	gotPong := make(chan bool, 1)
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
			t.Errorf("write ping: %v", err)
			return
		}
		var pong Message
		if err := conn.ReadJSON(&pong); err != nil {
			t.Errorf("read pong: %v", err)
			return
		}
		if pong.Type == MessageTypePong {
			gotPong <- true
		}
	})

	client := NewClient(hub, dialWebSocket(t, server))
	hub.Register <- client
	client.Start()

	waitForChannel(t, gotPong, "pong not received")
}

func TestClient_OnMessage(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Message
	)
	hub := NewHub(HubConfig{OnMessage: func(_ *Client, msg Message) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	}})

	sent := make(chan bool, 1)
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		_ = conn.WriteJSON(Message{Type: MessageTypePage, Data: "overview"})
		_ = conn.WriteJSON(Message{Type: MessageTypePing})
		_ = conn.WriteJSON(Message{Data: "no type"})
		sent <- true
		time.Sleep(100 * time.Millisecond)
	})

	client := NewClient(hub, dialWebSocket(t, server))
	go func() {
		// Drain the unregister readPump sends when the server hangs up.
		<-hub.Unregister
	}()
	go client.readPump()

	waitForChannel(t, sent, "frames not sent")
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Type != MessageTypePage || got[0].Data != "overview" {
		t.Errorf("OnMessage got %+v, want only the page frame", got)
	}
}

func TestClient_Integration(t *testing.T) {
	hub := setupHub(t)

	received := make(chan bool, 1)
	server := setupWebSocketServer(t, func(t *testing.T, conn *websocket.Conn) {
		var msg Message
		if err := conn.ReadJSON(&msg); err == nil && msg.Type == "crossfilter:changed" {
			received <- true
		}
	})

	client := NewClient(hub, dialWebSocket(t, server))
	hub.Register <- client
	client.Start()
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.BroadcastJSON("crossfilter:changed", map[string]int{"active": 2})
	waitForChannel(t, received, "broadcast not delivered")
}
