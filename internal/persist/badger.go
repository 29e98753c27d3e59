// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package persist

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/metrics"
)

// DefaultQuotaBytes mirrors the per-origin budget browsers give local storage.
const DefaultQuotaBytes int64 = 5 << 20

// BadgerConfig configures BadgerStorage.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in RAM only.
	InMemory bool

	// QuotaBytes caps the summed key and value sizes. Zero means unlimited.
	QuotaBytes int64

	SyncWrites bool

	Logger *zerolog.Logger
}

// BadgerStorage is a Storage backed by BadgerDB. Quota accounting is kept
// in memory and rebuilt from a key scan on open.
type BadgerStorage struct {
	db     *badger.DB
	quota  int64
	logger zerolog.Logger

	mu     sync.Mutex
	sizes  map[string]int64
	used   int64
	closed bool
}

// OpenBadger opens (or creates) the database described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStorage, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("persist: badger path required unless in-memory")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	s := &BadgerStorage{
		db:     db,
		quota:  cfg.QuotaBytes,
		logger: logging.OrNop(cfg.Logger),
		sizes:  make(map[string]int64),
	}
	if err := s.loadSizes(); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Int64("quota_bytes", cfg.QuotaBytes).
		Int64("used_bytes", s.used).
		Msg("persistent storage opened")
	return s, nil
}

func (s *BadgerStorage) loadSizes() error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			size := int64(len(key)) + item.ValueSize()
			s.sizes[key] = size
			s.used += size
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan storage keys: %w", err)
	}
	metrics.StorageBytes.Set(float64(s.used))
	return nil
}

func (s *BadgerStorage) GetItem(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return nil, ErrClosed
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return out, nil
}

func (s *BadgerStorage) SetItem(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	size := itemSize(key, value)
	next := s.used - s.sizes[key] + size
	if s.quota > 0 && next > s.quota {
		return ErrQuotaExceeded
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), value))
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	s.sizes[key] = size
	s.used = next
	metrics.StorageBytes.Set(float64(s.used))
	return nil
}

func (s *BadgerStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	s.used -= s.sizes[key]
	delete(s.sizes, key)
	metrics.StorageBytes.Set(float64(s.used))
	return nil
}

func (s *BadgerStorage) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys %q: %w", prefix, err)
	}
	return keys, nil
}

// Used returns the bytes currently charged against the quota.
func (s *BadgerStorage) Used() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Close closes the database. Further writes return ErrClosed.
func (s *BadgerStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	s.logger.Info().Msg("persistent storage closed")
	return nil
}
