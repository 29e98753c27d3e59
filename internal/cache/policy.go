// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package cache

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Class names a TTL tier.
type Class string

const (
	ClassStatic     Class = "static"
	ClassSemiStatic Class = "semiStatic"
	ClassDynamic    Class = "dynamic"
)

// Valid reports whether c is one of the known classes.
func (c Class) Valid() bool {
	switch c {
	case ClassStatic, ClassSemiStatic, ClassDynamic:
		return true
	}
	return false
}

// PolicyConfig is the raw TTL table a Policy is compiled from.
type PolicyConfig struct {
	// Default applies when nothing else matches.
	Default time.Duration

	// Classes gives the TTL of each named class.
	Classes map[Class]time.Duration

	// Exact maps a full key to its TTL.
	Exact map[string]time.Duration

	// Patterns maps a key pattern, where '*' matches any run of
	// characters, to its TTL.
	Patterns map[string]time.Duration

	// ClassRules assigns a class to every key containing the rule text.
	ClassRules map[string]Class
}

// DefaultPolicyConfig returns the dashboard's TTL table.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Default: 5 * time.Second,
		Classes: map[Class]time.Duration{
			ClassStatic:     30 * time.Minute,
			ClassSemiStatic: 10 * time.Minute,
			ClassDynamic:    5 * time.Second,
		},
		Exact: map[string]time.Duration{
			"/api/distritos":          30 * time.Minute,
			"/api/aggregate/by-month": 10 * time.Minute,
			"/api/dashboard-data":     5 * time.Second,
			"/api/summary":            5 * time.Second,
		},
		Patterns: map[string]time.Duration{
			"/api/unit/*": 30 * time.Minute,
		},
		ClassRules: map[string]Class{
			"/api/distinct": ClassStatic,
			"/api/meta/":    ClassSemiStatic,
		},
	}
}

type patternRule struct {
	pattern string
	re      *regexp.Regexp
	ttl     time.Duration
}

type classRule struct {
	contains string
	class    Class
}

// Policy resolves the TTL of a key: exact match, then wildcard pattern,
// then named class, then the default. Patterns and class rules are tried
// longest first, ties broken lexically, so a key always resolves the same
// way regardless of map iteration order.
type Policy struct {
	mu         sync.RWMutex
	defaultTTL time.Duration
	classes    map[Class]time.Duration
	exact      map[string]time.Duration
	patterns   []patternRule
	classRules []classRule
}

// NewPolicy compiles cfg.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if cfg.Default <= 0 {
		return nil, fmt.Errorf("cache: default TTL must be positive, got %v", cfg.Default)
	}

	p := &Policy{
		defaultTTL: cfg.Default,
		classes:    make(map[Class]time.Duration, len(cfg.Classes)),
		exact:      make(map[string]time.Duration, len(cfg.Exact)),
	}

	for c, ttl := range cfg.Classes {
		if !c.Valid() {
			return nil, fmt.Errorf("cache: unknown TTL class %q", c)
		}
		if ttl <= 0 {
			return nil, fmt.Errorf("cache: TTL for class %q must be positive", c)
		}
		p.classes[c] = ttl
	}

	for k, ttl := range cfg.Exact {
		if ttl <= 0 {
			return nil, fmt.Errorf("cache: TTL for key %q must be positive", k)
		}
		p.exact[k] = ttl
	}

	for pattern, ttl := range cfg.Patterns {
		if ttl <= 0 {
			return nil, fmt.Errorf("cache: TTL for pattern %q must be positive", pattern)
		}
		re, err := compilePattern(pattern)
		if err != nil {
			return nil, err
		}
		p.patterns = append(p.patterns, patternRule{pattern: pattern, re: re, ttl: ttl})
	}
	sort.Slice(p.patterns, func(i, j int) bool {
		return longerFirst(p.patterns[i].pattern, p.patterns[j].pattern)
	})

	for text, c := range cfg.ClassRules {
		if !c.Valid() {
			return nil, fmt.Errorf("cache: rule %q names unknown class %q", text, c)
		}
		if _, ok := p.classes[c]; !ok {
			return nil, fmt.Errorf("cache: rule %q names class %q which has no TTL", text, c)
		}
		p.classRules = append(p.classRules, classRule{contains: text, class: c})
	}
	sort.Slice(p.classRules, func(i, j int) bool {
		return longerFirst(p.classRules[i].contains, p.classRules[j].contains)
	})

	return p, nil
}

// MustPolicy is NewPolicy for tables known to be valid.
func MustPolicy(cfg PolicyConfig) *Policy {
	p, err := NewPolicy(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("cache: empty TTL pattern")
	}
	expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$"
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("cache: bad TTL pattern %q: %w", pattern, err)
	}
	return re, nil
}

func longerFirst(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

// Resolve returns the TTL for key.
func (p *Policy) Resolve(key string) time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if ttl, ok := p.exact[key]; ok {
		return ttl
	}
	for _, r := range p.patterns {
		if r.re.MatchString(key) {
			return r.ttl
		}
	}
	for _, r := range p.classRules {
		if strings.Contains(key, r.contains) {
			return p.classes[r.class]
		}
	}
	return p.defaultTTL
}

// ClassTTL returns the TTL of a named class.
func (p *Policy) ClassTTL(c Class) (time.Duration, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ttl, ok := p.classes[c]
	return ttl, ok
}

// Default returns the fallback TTL.
func (p *Policy) Default() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.defaultTTL
}

// SetDefault changes the fallback TTL. Non-positive values are ignored.
func (p *Policy) SetDefault(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultTTL = ttl
}
