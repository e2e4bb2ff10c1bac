//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package inmemory provides an in-memory cosine-similarity vector store.
package inmemory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/scope"
	"github.com/engram-ai/engram/vectorstore"
)

var _ vectorstore.Adapter = (*Store)(nil)

type record struct {
	vector []float64
	scope  scope.Scope
}

// Store keeps embeddings in memory and ranks by cosine similarity.
type Store struct {
	mu      sync.RWMutex
	records map[entry.Ref]record
}

// New creates an empty vector store.
func New() *Store {
	return &Store{records: make(map[entry.Ref]record)}
}

// Add stores or replaces the vector for an entry.
func (s *Store) Add(ref entry.Ref, sc scope.Scope, vector []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]float64, len(vector))
	copy(v, vector)
	s.records[ref] = record{vector: v, scope: sc}
}

// Remove deletes the vector for an entry.
func (s *Store) Remove(ref entry.Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, ref)
}

// Search implements vectorstore.Adapter. Scores are cosine similarities
// mapped onto [0, 1].
func (s *Store) Search(ctx context.Context, vector []float64, chain scope.Chain, limit int) ([]vectorstore.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]vectorstore.Hit, 0, len(s.records))
	for ref, rec := range s.records {
		if !chain.Contains(rec.scope) {
			continue
		}
		sim := cosine(vector, rec.vector)
		if sim <= 0 {
			continue
		}
		hits = append(hits, vectorstore.Hit{Ref: ref, Score: (sim + 1) / 2})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Ref.Type != hits[j].Ref.Type {
			return hits[i].Ref.Type < hits[j].Ref.Type
		}
		return hits[i].Ref.ID < hits[j].Ref.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
