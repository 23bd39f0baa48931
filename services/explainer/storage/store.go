// Copyright (C) 2025 ClinRisk Labs (engineering@clinrisk.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package storage persists intake-form drafts in an embedded BadgerDB so a
// page refresh or service restart does not lose half-entered patient data.
// Persistence here is best effort: a storage failure is logged, never
// surfaced as an analysis failure.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when no draft exists for the given id.
var ErrNotFound = errors.New("draft not found")

const draftPrefix = "draft/"

// Drafts expire so abandoned patient data does not sit on disk indefinitely.
const draftTTL = 24 * time.Hour

// =============================================================================
// Config
// =============================================================================

// Config holds configuration for the draft store's BadgerDB instance.
type Config struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode. Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults for a persistent store.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a diskless configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// =============================================================================
// DraftStore
// =============================================================================

// DraftStore saves and restores intake-form drafts keyed by scenario id.
// Safe for concurrent use.
type DraftStore struct {
	db *badger.DB
}

// Open creates the draft store. Caller must call Close when done.
func Open(cfg Config) (*DraftStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent draft store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create draft store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open draft store: %w", err)
	}
	return &DraftStore{db: db}, nil
}

// Save writes a draft. Unset fields are stored as JSON nulls so the
// set/unset distinction survives the round trip.
func (s *DraftStore) Save(id string, fields map[string]*float64) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal draft %s: %w", id, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(draftPrefix+id), payload).WithTTL(draftTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("save draft %s: %w", id, err)
	}
	return nil
}

// Load reads a draft, or ErrNotFound.
func (s *DraftStore) Load(id string) (map[string]*float64, error) {
	var fields map[string]*float64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(draftPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &fields)
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load draft %s: %w", id, err)
	}
	return fields, nil
}

// Delete removes a draft. Deleting a missing draft is not an error.
func (s *DraftStore) Delete(id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(draftPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	return nil
}

// Close releases the underlying database.
func (s *DraftStore) Close() error {
	return s.db.Close()
}
