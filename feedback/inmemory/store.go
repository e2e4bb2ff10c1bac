//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package inmemory provides an in-memory feedback store implementation.
package inmemory

import (
	"context"
	"sync"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/feedback"
)

var _ feedback.Store = (*Store)(nil)

// Store keeps per-entry success/failure counters in memory.
type Store struct {
	mu         sync.RWMutex
	aggregates map[entry.Ref]feedback.Aggregate
}

// New creates an empty feedback store.
func New() *Store {
	return &Store{aggregates: make(map[entry.Ref]feedback.Aggregate)}
}

// Record adds one feedback outcome for an entry.
func (s *Store) Record(ref entry.Ref, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := s.aggregates[ref]
	if success {
		agg.SuccessCount++
	} else {
		agg.FailureCount++
	}
	s.aggregates[ref] = agg
}

// GetAggregates implements feedback.Store.
func (s *Store) GetAggregates(ctx context.Context, refs []entry.Ref) (map[entry.Ref]feedback.Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[entry.Ref]feedback.Aggregate, len(refs))
	for _, ref := range refs {
		if agg, ok := s.aggregates[ref]; ok {
			out[ref] = agg
		}
	}
	return out, nil
}
