// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/logging"
)

// Forwarder relays bridged dashboard events from a watermill topic to every
// WebSocket client.
type Forwarder struct {
	hub    *Hub
	sub    message.Subscriber
	topic  string
	logger zerolog.Logger
}

// NewForwarder creates a forwarder reading topic from sub.
func NewForwarder(hub *Hub, sub message.Subscriber, topic string, logger *zerolog.Logger) (*Forwarder, error) {
	if hub == nil || sub == nil {
		return nil, errors.New("websocket: forwarder requires a hub and a subscriber")
	}
	if topic == "" {
		return nil, errors.New("websocket: forwarder requires a topic")
	}
	return &Forwarder{hub: hub, sub: sub, topic: topic, logger: logging.OrNop(logger)}, nil
}

// Serve relays messages until ctx is done. It implements suture.Service.
func (f *Forwarder) Serve(ctx context.Context) error {
	messages, err := f.sub.Subscribe(ctx, f.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", f.topic, err)
	}
	f.logger.Info().Str("topic", f.topic).Msg("event forwarder started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("websocket: forwarder subscription closed")
			}
			f.forward(msg)
		}
	}
}

// String names the forwarder in supervisor logs.
func (f *Forwarder) String() string {
	return "websocket-forwarder"
}

// forward always acks: a body that does not decode would fail again on
// redelivery.
func (f *Forwarder) forward(msg *message.Message) {
	defer msg.Ack()
	if err := f.hub.BroadcastRaw(msg.Payload); err != nil {
		f.logger.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable event")
	}
}
