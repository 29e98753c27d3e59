// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package dashboard

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/ouvidoria/internal/crossfilter"
	"github.com/tomtom215/ouvidoria/internal/eventbus"
	"github.com/tomtom215/ouvidoria/internal/filter"
)

// pageTopics are the bus topics that make a watched page stale.
var pageTopics = []string{
	filter.TopicApplied,
	filter.TopicRemoved,
	filter.TopicCleared,
	filter.TopicUpdateRequested,
	crossfilter.TopicChanged,
}

type watchOptions struct {
	visible  func() bool
	debounce time.Duration
}

// WatchOption configures WatchPage.
type WatchOption func(*watchOptions)

// WithVisibility replaces the default visibility check, which compares the
// page id with CurrentPage.
func WithVisibility(fn func() bool) WatchOption {
	return func(o *watchOptions) {
		if fn != nil {
			o.visible = fn
		}
	}
}

// WithDebounce overrides the configured page reload debounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WatchPage calls reload(true) after a burst of global filter or crossfilter
// events while the page is visible. Every event also invalidates the whole
// store so the reload fetches fresh data. The returned function stops watching and cancels a
// pending reload.
func (s *Service) WatchPage(pageID string, reload func(force bool), opts ...WatchOption) func() {
	if reload == nil {
		return func() {}
	}
	o := watchOptions{
		visible:  func() bool { return s.CurrentPage() == pageID },
		debounce: s.cfg.Filters.PageDebounce,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := s.logger.With().Str("page", pageID).Logger()

	var (
		mu      sync.Mutex
		timer   *time.Timer
		stopped bool
	)
	fire := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Str("panic", fmt.Sprint(r)).Msg("page reload panicked")
			}
		}()
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		timer = nil
		mu.Unlock()
		reload(true)
	}
	onEvent := func(e eventbus.Event) {
		if !o.visible() {
			return
		}
		s.Store.Invalidate()

		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(o.debounce, fire)
		logger.Debug().Str("topic", e.Topic).Msg("page reload scheduled")
	}

	unsubs := make([]func(), 0, len(pageTopics))
	for _, topic := range pageTopics {
		unsubs = append(unsubs, s.Bus.On(topic, onEvent))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
		return func() {}
	}
	s.nextID++
	id := s.nextID

	var once sync.Once
	stop := func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
			mu.Lock()
			stopped = true
			if timer != nil {
				timer.Stop()
				timer = nil
			}
			mu.Unlock()

			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			logger.Debug().Msg("page watcher stopped")
		})
	}
	s.watchers[id] = stop
	s.mu.Unlock()

	logger.Debug().Dur("debounce", o.debounce).Msg("page watcher started")
	return stop
}
