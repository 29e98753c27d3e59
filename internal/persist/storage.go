// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

// Package persist is the slow, durable tier under the in-memory store.
//
// Storage is a small synchronous key-value contract with a byte quota,
// implemented by BadgerStorage for the server and MemoryStorage for tests.
// Mirror layers versioned, TTL-stamped records on top of a Storage and keeps
// it bounded with expiry sweeps.
package persist

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned by GetItem for a missing key.
	ErrNotFound = errors.New("persist: key not found")

	// ErrQuotaExceeded is returned by SetItem when the write would push the
	// storage past its byte quota.
	ErrQuotaExceeded = errors.New("persist: storage quota exceeded")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("persist: storage closed")
)

// Storage is a quota-limited key-value store.
type Storage interface {
	GetItem(key string) ([]byte, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error
	Keys(prefix string) ([]string, error)
}

// itemSize is what one entry costs against the quota.
func itemSize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}

// MemoryStorage is a map-backed Storage. A zero quota means unlimited.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string][]byte
	used  int64
	quota int64
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage(quota int64) *MemoryStorage {
	return &MemoryStorage{items: make(map[string][]byte), quota: quota}
}

func (s *MemoryStorage) GetItem(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStorage) SetItem(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev int64
	if old, ok := s.items[key]; ok {
		prev = itemSize(key, old)
	}
	next := s.used - prev + itemSize(key, value)
	if s.quota > 0 && next > s.quota {
		return ErrQuotaExceeded
	}
	s.items[key] = append([]byte(nil), value...)
	s.used = next
	return nil
}

func (s *MemoryStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.items[key]; ok {
		s.used -= itemSize(key, old)
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStorage) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the bytes currently charged against the quota.
func (s *MemoryStorage) Used() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}
