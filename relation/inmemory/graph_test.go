//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/scope"
)

func ref(id string) entry.Ref {
	return entry.Ref{Type: entry.TypeKnowledge, ID: id}
}

func globalChain() scope.Chain {
	return scope.Chain{scope.Global}
}

// a -> b -> c, all global.
func chainGraph() *Graph {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		g.SetScope(ref(id), scope.Global)
	}
	g.Relate(ref("a"), ref("b"), 0.5)
	g.Relate(ref("b"), ref("c"), 0.5)
	return g
}

func TestNeighborsScoreDecaysWithDistance(t *testing.T) {
	g := chainGraph()
	hits, err := g.Neighbors(context.Background(), []entry.Ref{ref("a")}, globalChain(), 2, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].Ref.ID)
	assert.Equal(t, 0.5, hits[0].Score)
	assert.Equal(t, "c", hits[1].Ref.ID)
	assert.Equal(t, 0.25, hits[1].Score)
}

func TestNeighborsHopBound(t *testing.T) {
	g := chainGraph()
	hits, err := g.Neighbors(context.Background(), []entry.Ref{ref("a")}, globalChain(), 1, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Ref.ID)
}

func TestNeighborsExcludeSeeds(t *testing.T) {
	g := New()
	g.SetScope(ref("a"), scope.Global)
	g.SetScope(ref("b"), scope.Global)
	g.Relate(ref("a"), ref("b"), 1)
	g.Relate(ref("b"), ref("a"), 1)

	hits, err := g.Neighbors(context.Background(), []entry.Ref{ref("a")}, globalChain(), 3, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Ref.ID)
}

func TestNeighborsBestPathWins(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		g.SetScope(ref(id), scope.Global)
	}
	// Direct weak edge and a stronger two-hop path to the same node.
	g.Relate(ref("a"), ref("c"), 0.1)
	g.Relate(ref("a"), ref("b"), 0.9)
	g.Relate(ref("b"), ref("c"), 0.9)

	hits, err := g.Neighbors(context.Background(), []entry.Ref{ref("a")}, globalChain(), 2, 10)
	require.NoError(t, err)
	for _, h := range hits {
		if h.Ref.ID == "c" {
			assert.InDelta(t, 0.81, h.Score, 1e-12)
			return
		}
	}
	t.Fatal("c not reached")
}

func TestNeighborsRespectScopeChain(t *testing.T) {
	g := New()
	g.SetScope(ref("a"), scope.Global)
	g.SetScope(ref("b"), scope.Scope{Type: scope.TypeProject, ID: "p2"})
	g.Relate(ref("a"), ref("b"), 1)

	hits, err := g.Neighbors(context.Background(), []entry.Ref{ref("a")}, globalChain(), 2, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestNeighborsUnknownScopeHidden(t *testing.T) {
	g := New()
	g.SetScope(ref("a"), scope.Global)
	// b has edges but no recorded scope.
	g.Relate(ref("a"), ref("b"), 1)

	hits, err := g.Neighbors(context.Background(), []entry.Ref{ref("a")}, globalChain(), 2, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestNeighborsNoSeeds(t *testing.T) {
	g := chainGraph()
	hits, err := g.Neighbors(context.Background(), nil, globalChain(), 2, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRelateClampsInvalidWeight(t *testing.T) {
	g := New()
	g.SetScope(ref("a"), scope.Global)
	g.SetScope(ref("b"), scope.Global)
	g.Relate(ref("a"), ref("b"), -3)

	hits, err := g.Neighbors(context.Background(), []entry.Ref{ref("a")}, globalChain(), 1, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1.0, hits[0].Score)
}
