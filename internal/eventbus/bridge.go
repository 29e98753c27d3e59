// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package eventbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/logging"
)

// DefaultBridgeTopic is the watermill topic bridged events are published on.
const DefaultBridgeTopic = "dashboard.events"

// TopicMetadataKey carries the bus topic on every bridged message.
const TopicMetadataKey = "event_topic"

// Envelope is the JSON body of a bridged message.
type Envelope struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// BridgeConfig selects what a Bridge forwards.
type BridgeConfig struct {
	// Topic is the watermill topic to publish on. Default: DefaultBridgeTopic
	Topic string

	// Forward lists the bus topics to forward. Empty forwards everything
	// through a wildcard subscription.
	Forward []string

	Logger *zerolog.Logger
}

// Bridge republishes bus events on a watermill publisher so consumers
// outside the process, or on other goroutines, can follow them.
type Bridge struct {
	bus    *Bus
	pub    message.Publisher
	topic  string
	fwd    []string
	logger zerolog.Logger

	mu     sync.Mutex
	unsubs []func()
}

// NewBridge creates a bridge; call Start to begin forwarding.
func NewBridge(bus *Bus, pub message.Publisher, cfg BridgeConfig) (*Bridge, error) {
	if bus == nil {
		return nil, errors.New("eventbus: bridge requires a bus")
	}
	if pub == nil {
		return nil, errors.New("eventbus: bridge requires a publisher")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultBridgeTopic
	}
	return &Bridge{
		bus:    bus,
		pub:    pub,
		topic:  topic,
		fwd:    append([]string(nil), cfg.Forward...),
		logger: logging.OrNop(cfg.Logger),
	}, nil
}

// Topic returns the watermill topic messages are published on.
func (br *Bridge) Topic() string {
	return br.topic
}

// Start subscribes the bridge to its bus topics. Calling it twice is a no-op.
func (br *Bridge) Start() {
	br.mu.Lock()
	defer br.mu.Unlock()

	if len(br.unsubs) > 0 {
		return
	}
	if len(br.fwd) == 0 {
		br.unsubs = append(br.unsubs, br.bus.Subscribe(Wildcard, br))
		return
	}
	for _, t := range br.fwd {
		br.unsubs = append(br.unsubs, br.bus.Subscribe(t, br))
	}
}

// Stop removes the bridge's bus subscriptions.
func (br *Bridge) Stop() {
	br.mu.Lock()
	defer br.mu.Unlock()

	for _, unsub := range br.unsubs {
		unsub()
	}
	br.unsubs = nil
}

// HandleEvent publishes e on the watermill topic.
func (br *Bridge) HandleEvent(e Event) error {
	body, err := json.Marshal(Envelope{Type: e.Topic, Data: e.Payload, At: e.At})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", e.Topic, err)
	}

	msg := message.NewMessage(uuid.NewString(), body)
	msg.Metadata.Set(TopicMetadataKey, e.Topic)

	if err := br.pub.Publish(br.topic, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Topic, err)
	}
	br.logger.Debug().Str("topic", e.Topic).Str("message_id", msg.UUID).Msg("event bridged")
	return nil
}
