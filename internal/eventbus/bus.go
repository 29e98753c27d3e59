// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package eventbus is the synchronous publish/subscribe dispatcher shared by
// the cache, the filter engines and the chart registry.
//
// Dispatch contract:
//   - Emit runs every listener of the topic in registration order, then every
//     listener of the Wildcard topic, before returning.
//   - A listener that returns an error or panics is logged and skipped; its
//     siblings still run and nothing reaches the emitter.
//   - Listeners run without the bus lock held, so they may subscribe,
//     unsubscribe or emit again.
package eventbus

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/metrics"
)

// Wildcard receives every event emitted on any other topic.
const Wildcard = "*"

// Event is what listeners receive.
type Event struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Subscriber handles bus events.
type Subscriber interface {
	HandleEvent(Event) error
}

// HandlerFunc adapts a function to Subscriber.
type HandlerFunc func(Event) error

// HandleEvent calls f(e).
func (f HandlerFunc) HandleEvent(e Event) error {
	return f(e)
}

type subscription struct {
	id  uint64
	sub Subscriber
}

// Bus is a topic keyed listener registry. The zero value is not usable; use New.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]subscription
	nextID uint64
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for listener failures.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		topics: make(map[string][]subscription),
		now:    time.Now,
		logger: logging.OrNop(nil),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers fn for topic and returns its unsubscribe function.
func (b *Bus) On(topic string, fn func(Event)) func() {
	return b.Subscribe(topic, HandlerFunc(func(e Event) error {
		fn(e)
		return nil
	}))
}

// Subscribe registers s for topic and returns its unsubscribe function.
// Subscribing the same comparable subscriber twice to one topic keeps a
// single registration and returns an unsubscribe for it.
func (b *Bus) Subscribe(topic string, s Subscriber) func() {
	if topic == "" || s == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if reflect.TypeOf(s).Comparable() {
		for _, existing := range b.topics[topic] {
			if reflect.TypeOf(existing.sub) == reflect.TypeOf(s) && existing.sub == s {
				return b.unsubscriber(topic, existing.id)
			}
		}
	}

	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, sub: s})
	return b.unsubscriber(topic, id)
}

func (b *Bus) unsubscriber(topic string, id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		// Copy so snapshots held by in-flight emits stay intact.
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.topics, topic)
		} else {
			b.topics[topic] = next
		}
		return
	}
}

// Emit delivers payload to the topic's listeners, then to wildcard listeners.
func (b *Bus) Emit(topic string, payload any) {
	if topic == "" {
		return
	}

	b.mu.RLock()
	direct := b.topics[topic]
	var wild []subscription
	if topic != Wildcard {
		wild = b.topics[Wildcard]
	}
	b.mu.RUnlock()

	metrics.EventsEmitted.WithLabelValues(topic).Inc()

	e := Event{Topic: topic, Payload: payload, At: b.now()}
	for _, s := range direct {
		b.dispatch(topic, s.sub, e)
	}
	for _, s := range wild {
		b.dispatch(topic, s.sub, e)
	}
}

func (b *Bus) dispatch(topic string, s Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerFailures.WithLabelValues(topic, "panic").Inc()
			b.logger.Error().
				Str("topic", topic).
				Str("panic", fmt.Sprint(r)).
				Msg("event listener panicked")
		}
	}()

	if err := s.HandleEvent(e); err != nil {
		metrics.ListenerFailures.WithLabelValues(topic, "error").Inc()
		b.logger.Warn().Err(err).Str("topic", topic).Msg("event listener failed")
	}
}

// Off drops every listener of topic.
func (b *Bus) Off(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics, topic)
}

// Clear drops every listener of every topic.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = make(map[string][]subscription)
}

// ListenerCount returns the listeners registered for topic, or for all
// topics when topic is empty.
func (b *Bus) ListenerCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if topic != "" {
		return len(b.topics[topic])
	}
	n := 0
	for _, subs := range b.topics {
		n += len(subs)
	}
	return n
}

// Topics returns the topics that currently have listeners, sorted.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.topics))
	for t := range b.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
