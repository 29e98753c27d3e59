// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package cache

import (
	"testing"
	"time"
)

func TestDefaultPolicyResolve(t *testing.T) {
	p := MustPolicy(DefaultPolicyConfig())

	tests := []struct {
		key  string
		want time.Duration
	}{
		{"/api/distritos", 30 * time.Minute},
		{"/api/aggregate/by-month", 10 * time.Minute},
		{"/api/summary", 5 * time.Second},
		{"/api/dashboard-data", 5 * time.Second},
		{"/api/unit/ubs-centro", 30 * time.Minute},
		{"/api/distinct?field=Tema", 30 * time.Minute},
		{"/api/meta/fields", 10 * time.Minute},
		{"/api/aggregate/by-theme", 5 * time.Second},
		{"dashboardData", 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Resolve(tt.key); got != tt.want {
			t.Errorf("Resolve(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestPolicyPrecedence(t *testing.T) {
	p, err := NewPolicy(PolicyConfig{
		Default: time.Second,
		Classes: map[Class]time.Duration{ClassStatic: time.Hour},
		Exact:   map[string]time.Duration{"/api/unit/special": 2 * time.Second},
		Patterns: map[string]time.Duration{
			"/api/unit/*":         3 * time.Second,
			"/api/unit/*/details": 4 * time.Second,
		},
		ClassRules: map[string]Class{"/api/unit": ClassStatic},
	})
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	tests := []struct {
		key  string
		want time.Duration
	}{
		{"/api/unit/special", 2 * time.Second},
		{"/api/unit/7/details", 4 * time.Second},
		{"/api/unit/7", 3 * time.Second},
		{"/api/units", time.Hour},
		{"/other", time.Second},
	}
	for _, tt := range tests {
		for i := 0; i < 3; i++ {
			if got := p.Resolve(tt.key); got != tt.want {
				t.Errorf("Resolve(%q) = %v, want %v", tt.key, got, tt.want)
			}
		}
	}
}

func TestNewPolicyRejectsBadTables(t *testing.T) {
	tests := []struct {
		name string
		cfg  PolicyConfig
	}{
		{"zero default", PolicyConfig{}},
		{"unknown class", PolicyConfig{Default: time.Second, Classes: map[Class]time.Duration{"hot": time.Second}}},
		{"negative exact", PolicyConfig{Default: time.Second, Exact: map[string]time.Duration{"k": -1}}},
		{"empty pattern", PolicyConfig{Default: time.Second, Patterns: map[string]time.Duration{"": time.Second}}},
		{"rule without class ttl", PolicyConfig{Default: time.Second, ClassRules: map[string]Class{"/x": ClassStatic}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPolicy(tt.cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPolicySetDefault(t *testing.T) {
	p := MustPolicy(DefaultPolicyConfig())
	p.SetDefault(-time.Second)
	if p.Default() != 5*time.Second {
		t.Error("non-positive default should be ignored")
	}
	p.SetDefault(time.Minute)
	if p.Default() != time.Minute {
		t.Errorf("Default = %v", p.Default())
	}
	if ttl, ok := p.ClassTTL(ClassSemiStatic); !ok || ttl != 10*time.Minute {
		t.Errorf("ClassTTL(semiStatic) = %v, %v", ttl, ok)
	}
}
