// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/ouvidoria/internal/eventbus"
)

func TestBridgeService_StartsAndStops(t *testing.T) {
	bus := eventbus.New()
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer ps.Close()

	br, err := eventbus.NewBridge(bus, ps, eventbus.BridgeConfig{Forward: []string{"filter:applied"}})
	if err != nil {
		t.Fatal(err)
	}
	msgs, err := ps.Subscribe(context.Background(), br.Topic())
	if err != nil {
		t.Fatal(err)
	}

	svc := NewBridgeService(br)
	if svc.String() != "event-bridge" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(time.Second)
	for bus.ListenerCount("filter:applied") == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	bus.Emit("filter:applied", map[string]string{"field": "Status"})

	select {
	case msg := <-msgs:
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("bridged event not published")
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v", err)
	}
	if n := bus.ListenerCount("filter:applied"); n != 0 {
		t.Errorf("listeners after stop = %d, want 0", n)
	}
}
