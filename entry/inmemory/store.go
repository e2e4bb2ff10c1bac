//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package inmemory provides an in-memory entry store implementation.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/engram-ai/engram/entry"
)

var _ entry.Store = (*Store)(nil)

// Store is an in-memory implementation of entry.Store. It also exposes
// write methods so it can back tests and reference deployments.
type Store struct {
	mu      sync.RWMutex
	entries map[entry.Ref]*entry.Entry
}

// New creates an empty in-memory entry store.
func New() *Store {
	return &Store{entries: make(map[entry.Ref]*entry.Entry)}
}

// Put stores an entry, assigning an ID and timestamps when missing.
// An existing entry with the same identity is replaced and its version
// incremented.
func (s *Store) Put(e *entry.Entry) *entry.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = now
	}
	if prev, ok := s.entries[e.Ref()]; ok {
		e.Version = prev.Version + 1
	} else if e.Version == 0 {
		e.Version = 1
	}
	s.entries[e.Ref()] = e
	return e
}

// Delete removes an entry. Deleting a missing entry is a no-op.
func (s *Store) Delete(ref entry.Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ref)
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// BatchGet implements entry.Store. Missing IDs are silently omitted.
func (s *Store) BatchGet(ctx context.Context, typ entry.Type, ids []string) ([]*entry.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entry.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entries[entry.Ref{Type: typ, ID: id}]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}
