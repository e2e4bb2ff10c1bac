//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package inmemory provides an in-memory adjacency-list relation graph.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/relation"
	"github.com/engram-ai/engram/scope"
)

var _ relation.Adapter = (*Graph)(nil)

type edge struct {
	to     entry.Ref
	weight float64
}

// Graph is a weighted, directed relation graph held in memory.
type Graph struct {
	mu     sync.RWMutex
	edges  map[entry.Ref][]edge
	scopes map[entry.Ref]scope.Scope
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		edges:  make(map[entry.Ref][]edge),
		scopes: make(map[entry.Ref]scope.Scope),
	}
}

// SetScope records the scope an entry belongs to. Neighbors outside the
// queried chain are never returned.
func (g *Graph) SetScope(ref entry.Ref, sc scope.Scope) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scopes[ref] = sc
}

// Relate adds a directed edge with the given weight in (0, 1].
func (g *Graph) Relate(from, to entry.Ref, weight float64) {
	if weight <= 0 || weight > 1 {
		weight = 1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[from] = append(g.edges[from], edge{to: to, weight: weight})
}

// Neighbors implements relation.Adapter with a breadth-first walk. The score
// of a neighbor is the best product of edge weights along any discovered
// path, so it decays with distance.
func (g *Graph) Neighbors(ctx context.Context, seeds []entry.Ref, chain scope.Chain, maxHops, limit int) ([]relation.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(seeds) == 0 || maxHops <= 0 {
		return nil, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	seedSet := make(map[entry.Ref]struct{}, len(seeds))
	for _, s := range seeds {
		seedSet[s] = struct{}{}
	}

	best := make(map[entry.Ref]float64)
	frontier := make(map[entry.Ref]float64, len(seeds))
	for _, s := range seeds {
		frontier[s] = 1
	}
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		next := make(map[entry.Ref]float64)
		for from, score := range frontier {
			for _, e := range g.edges[from] {
				s := score * e.weight
				if s <= best[e.to] {
					continue
				}
				best[e.to] = s
				next[e.to] = s
			}
		}
		frontier = next
	}

	hits := make([]relation.Hit, 0, len(best))
	for ref, score := range best {
		if _, isSeed := seedSet[ref]; isSeed {
			continue
		}
		if sc, ok := g.scopes[ref]; !ok || !chain.Contains(sc) {
			continue
		}
		hits = append(hits, relation.Hit{Ref: ref, Score: score})
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
