// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package loader fetches aggregated data from the aggregation API and
// stores it in the key-value store.
//
// A Loader serves reads from the store first, collapses identical in-flight
// requests into one, caps concurrent upstream requests, and sizes each
// request timeout to how heavy its endpoint is. Timeouts and transport
// errors are retried with exponential backoff. Gateway errors clear the
// stored key so the next load goes upstream again. A circuit breaker stops
// hammering an upstream that keeps failing.
//
// Thread Safety: safe for concurrent use.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ouvidoria/internal/cache"
	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/metrics"
)

var (
	// ErrUpstream wraps every failed request to the aggregation API.
	ErrUpstream = errors.New("loader: upstream request failed")

	// ErrInvalidEndpoint is returned for endpoints that are not absolute
	// paths.
	ErrInvalidEndpoint = errors.New("loader: invalid endpoint")
)

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s", e.Endpoint, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// Gateway errors also clear the stored key.
func (e *StatusError) gateway() bool {
	return e.Code == http.StatusBadGateway ||
		e.Code == http.StatusServiceUnavailable ||
		e.Code == http.StatusGatewayTimeout
}

const (
	// DefaultMaxConcurrent caps simultaneous upstream requests.
	DefaultMaxConcurrent = 6

	// DefaultBackoffBase is the first retry delay.
	DefaultBackoffBase = time.Second

	maxBodyBytes = 32 << 20
)

// Store is the part of the key-value store the loader uses.
// *cache.Store[json.RawMessage] satisfies it.
type Store interface {
	Get(key string, opts ...cache.GetOption) (json.RawMessage, bool)
	Set(key string, value json.RawMessage, opts ...cache.SetOption)
	Clear(key string)
}

// Config configures a Loader.
type Config struct {
	// BaseURL of the aggregation API, e.g. http://localhost:3000
	BaseURL string

	// MaxConcurrent defaults to 6.
	MaxConcurrent int

	// Retries after the first attempt, for timeouts and transport errors.
	Retries int

	// BackoffBase defaults to 1s.
	BackoffBase time.Duration

	// Timeouts default to DefaultTimeoutRules.
	Timeouts []TimeoutRule

	// DefaultTimeout defaults to 30s.
	DefaultTimeout time.Duration

	// RateLimit is the sustained request rate per second. Zero disables it.
	RateLimit float64
	RateBurst int

	Breaker BreakerConfig

	// HTTPClient defaults to a client without a global timeout; every
	// request carries its own deadline.
	HTTPClient *http.Client

	Logger *zerolog.Logger
}

// DefaultConfig returns the loader defaults with one retry.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  DefaultMaxConcurrent,
		Retries:        1,
		BackoffBase:    DefaultBackoffBase,
		Timeouts:       DefaultTimeoutRules(),
		DefaultTimeout: DefaultTimeout,
		Breaker:        DefaultBreakerConfig(),
	}
}

// QueueStats reports the concurrency slots in use.
type QueueStats struct {
	Active        int64 `json:"active"`
	Queued        int64 `json:"queued"`
	MaxConcurrent int64 `json:"maxConcurrent"`
}

// Result is one entry of LoadMany.
type Result struct {
	Endpoint string          `json:"endpoint"`
	Data     json.RawMessage `json:"data"`
	Err      error           `json:"-"`
}

// Loader fetches endpoints from the aggregation API.
type Loader struct {
	baseURL        string
	client         *http.Client
	store          Store
	sem            *semaphore.Weighted
	maxConcurrent  int64
	group          singleflight.Group
	limiter        *rate.Limiter
	breaker        *gobreaker.CircuitBreaker[[]byte]
	timeouts       []TimeoutRule
	defaultTimeout time.Duration
	retries        int
	backoff        time.Duration
	logger         zerolog.Logger

	active atomic.Int64
	queued atomic.Int64
}

// New creates a Loader writing into store. A nil store disables caching.
func New(cfg Config, store Store) (*Loader, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("loader: invalid base URL %q", cfg.BaseURL)
	}

	l := &Loader{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		client:         cfg.HTTPClient,
		store:          store,
		maxConcurrent:  int64(cfg.MaxConcurrent),
		timeouts:       cfg.Timeouts,
		defaultTimeout: cfg.DefaultTimeout,
		retries:        cfg.Retries,
		backoff:        cfg.BackoffBase,
		logger:         logging.OrNop(cfg.Logger),
	}
	if l.client == nil {
		l.client = &http.Client{}
	}
	if l.maxConcurrent <= 0 {
		l.maxConcurrent = DefaultMaxConcurrent
	}
	l.sem = semaphore.NewWeighted(l.maxConcurrent)
	if l.timeouts == nil {
		l.timeouts = DefaultTimeoutRules()
	}
	if l.defaultTimeout <= 0 {
		l.defaultTimeout = DefaultTimeout
	}
	if l.retries < 0 {
		l.retries = 0
	}
	if l.backoff <= 0 {
		l.backoff = DefaultBackoffBase
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	bcfg := cfg.Breaker
	if bcfg.FailureRatio <= 0 {
		bcfg = DefaultBreakerConfig()
	}
	l.breaker = newBreaker("aggregation-api", bcfg, l.logger)
	return l, nil
}

type loadOptions struct {
	fallback json.RawMessage
	timeout  time.Duration
	retries  int
	useStore bool
	ttl      time.Duration
}

// Option adjusts a single load.
type Option func(*loadOptions)

// WithFallback is returned instead of an error when the load fails.
func WithFallback(v json.RawMessage) Option {
	return func(o *loadOptions) { o.fallback = v }
}

// WithTimeout overrides the endpoint timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *loadOptions) { o.timeout = d }
}

// WithRetries overrides the configured retry count.
func WithRetries(n int) Option {
	return func(o *loadOptions) { o.retries = n }
}

// SkipStore always goes upstream. The response is still stored.
func SkipStore() Option {
	return func(o *loadOptions) { o.useStore = false }
}

// WithCacheTTL overrides the TTL used for the store read.
func WithCacheTTL(d time.Duration) Option {
	return func(o *loadOptions) { o.ttl = d }
}

// Load returns the data of endpoint, from the store when fresh and from the
// aggregation API otherwise. On failure the fallback, when given, is
// returned with a nil error.
func (l *Loader) Load(ctx context.Context, endpoint string, opts ...Option) (json.RawMessage, error) {
	o := loadOptions{retries: l.retries, useStore: true}
	for _, opt := range opts {
		opt(&o)
	}
	if !strings.HasPrefix(endpoint, "/") {
		return o.fallback, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	if o.useStore && l.store != nil {
		var getOpts []cache.GetOption
		if o.ttl > 0 {
			getOpts = append(getOpts, cache.WithTTL(o.ttl))
		}
		if v, ok := l.store.Get(storeKey(endpoint), getOpts...); ok {
			l.logger.Debug().Str("endpoint", endpoint).Msg("served from store")
			return v, nil
		}
	}

	// The shared fetch outlives any single caller so it can fill the store.
	flight := l.group.DoChan(flightKey(endpoint, o), func() (any, error) {
		return l.fetch(context.WithoutCancel(ctx), endpoint, o)
	})

	select {
	case <-ctx.Done():
		return o.fallback, ctx.Err()
	case res := <-flight:
		if res.Shared {
			l.logger.Debug().Str("endpoint", endpoint).Msg("reused pending request")
		}
		if res.Err != nil {
			if o.fallback != nil {
				l.logger.Warn().Err(res.Err).Str("endpoint", endpoint).Msg("load failed, returning fallback")
				return o.fallback, nil
			}
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	}
}

// LoadMany loads every endpoint concurrently, within the concurrency cap,
// and reports each outcome in input order.
func (l *Loader) LoadMany(ctx context.Context, endpoints []string, opts ...Option) []Result {
	results := make([]Result, len(endpoints))
	var g errgroup.Group
	for i, ep := range endpoints {
		g.Go(func() error {
			data, err := l.Load(ctx, ep, opts...)
			results[i] = Result{Endpoint: ep, Data: data, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// QueueStats returns the current concurrency usage.
func (l *Loader) QueueStats() QueueStats {
	return QueueStats{
		Active:        l.active.Load(),
		Queued:        l.queued.Load(),
		MaxConcurrent: l.maxConcurrent,
	}
}

// BreakerState returns the circuit breaker state name.
func (l *Loader) BreakerState() string {
	return stateToString(l.breaker.State())
}

func (l *Loader) fetch(ctx context.Context, endpoint string, o loadOptions) (json.RawMessage, error) {
	l.queued.Add(1)
	metrics.LoaderQueued.Inc()
	err := l.sem.Acquire(ctx, 1)
	l.queued.Add(-1)
	metrics.LoaderQueued.Dec()
	if err != nil {
		return nil, err
	}
	defer l.sem.Release(1)

	l.active.Add(1)
	metrics.LoaderInFlight.Inc()
	defer func() {
		l.active.Add(-1)
		metrics.LoaderInFlight.Dec()
	}()

	timeout := o.timeout
	if timeout <= 0 {
		timeout = timeoutFor(l.timeouts, l.defaultTimeout, endpoint)
	}

	var lastErr error
	for attempt := 0; attempt <= o.retries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(l.backoff, attempt-1)
			l.logger.Warn().
				Err(lastErr).
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Int("max_attempts", o.retries+1).
				Dur("delay", delay).
				Msg("retrying upstream request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := l.attempt(ctx, endpoint, timeout)
		if err == nil {
			return l.keep(endpoint, body), nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) {
			if se.gateway() && l.store != nil {
				l.store.Clear(storeKey(endpoint))
			}
			l.logger.Warn().Str("endpoint", endpoint).Int("status", se.Code).Msg("upstream returned an error status")
			return nil, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, endpoint, err)
		}
	}
	l.logger.Error().Err(lastErr).Str("endpoint", endpoint).Msg("upstream request failed")
	return nil, lastErr
}

func (l *Loader) attempt(ctx context.Context, endpoint string, timeout time.Duration) ([]byte, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	label := metricsLabel(endpoint)
	return l.breaker.Execute(func() ([]byte, error) {
		actx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(actx, http.MethodGet, l.baseURL+endpoint, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Cache-Control", "no-cache")

		start := time.Now()
		resp, err := l.client.Do(req)
		if err != nil {
			metrics.RecordLoaderRequest(label, 0, time.Since(start))
			return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, endpoint, err)
		}
		defer resp.Body.Close()
		metrics.RecordLoaderRequest(label, resp.StatusCode, time.Since(start))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: read body: %w", ErrUpstream, endpoint, err)
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("%w: %s: response is not JSON", ErrUpstream, endpoint)
		}
		return body, nil
	})
}

// dashboardSeries are the sub-keys populated from a dashboard-data payload.
var dashboardSeries = []struct {
	field string
	keys  []string
}{
	{"manifestationsByMonth", []string{"manifestationsByMonth", "/api/aggregate/by-month"}},
	{"manifestationsByDay", []string{"manifestationsByDay", "/api/aggregate/by-day"}},
	{"manifestationsByStatus", []string{"manifestationsByStatus"}},
	{"manifestationsByTheme", []string{"manifestationsByTheme", "/api/aggregate/by-theme"}},
	{"manifestationsBySubject", []string{"manifestationsBySubject", "/api/aggregate/by-subject"}},
	{"manifestationsByOrgan", []string{"manifestationsByOrgan"}},
}

// keep stores a fetched body and returns it.
func (l *Loader) keep(endpoint string, body []byte) json.RawMessage {
	data := json.RawMessage(body)
	if l.store == nil {
		return data
	}

	switch {
	case isDashboardData(endpoint):
		l.fanOut(data)
	case endpoint == "/api/distritos" && !hasDistritos(data):
		l.logger.Warn().Str("endpoint", endpoint).Msg("empty districts payload, not caching")
		l.store.Clear(endpoint)
		return data
	default:
		l.store.Set(endpoint, data, cache.DeepCopy())
	}

	logging.Success(l.logger).Str("endpoint", endpoint).Int("items", countItems(data)).Msg("loaded")
	return data
}

func (l *Loader) fanOut(data json.RawMessage) {
	l.store.Set(cache.DashboardDataKey, data, cache.DeepCopy())

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		l.logger.Warn().Err(err).Msg("dashboard data is not an object, skipping series")
		return
	}
	for _, s := range dashboardSeries {
		v, ok := fields[s.field]
		if !ok || string(v) == "null" {
			continue
		}
		for _, key := range s.keys {
			l.store.Set(key, v, cache.DeepCopy())
		}
	}
}

func storeKey(endpoint string) string {
	if isDashboardData(endpoint) {
		return cache.DashboardDataKey
	}
	return endpoint
}

func isDashboardData(endpoint string) bool {
	return strings.Contains(endpoint, "/api/dashboard-data")
}

func hasDistritos(data json.RawMessage) bool {
	var v struct {
		Distritos map[string]json.RawMessage `json:"distritos"`
	}
	return json.Unmarshal(data, &v) == nil && len(v.Distritos) > 0
}

func flightKey(endpoint string, o loadOptions) string {
	return endpoint + "|" + o.timeout.String() + "|" + strconv.Itoa(o.retries) + "|" + strconv.FormatBool(o.useStore)
}

func metricsLabel(endpoint string) string {
	path, _, _ := strings.Cut(endpoint, "?")
	return path
}

// countItems sizes a payload for logging.
func countItems(data json.RawMessage) int {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return 0
	}
	switch t := v.(type) {
	case []any:
		return len(t)
	case map[string]any:
		if n, ok := t["total"].(float64); ok {
			return int(n)
		}
		if n, ok := t["count"].(float64); ok {
			return int(n)
		}
		return len(t)
	}
	return 0
}
