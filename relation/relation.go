//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package relation defines the relation-graph adapter interface used to walk
// explicit entry-to-entry relations.
package relation

import (
	"context"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/scope"
)

// Hit is one related entry with a graph-local proximity score; closer
// neighbors score higher.
type Hit struct {
	Ref   entry.Ref
	Score float64
}

// Adapter walks an external relation graph.
type Adapter interface {
	// Neighbors returns entries reachable from the seed refs within maxHops,
	// restricted to the given scopes. Seeds themselves are not returned.
	Neighbors(ctx context.Context, seeds []entry.Ref, chain scope.Chain, maxHops, limit int) ([]Hit, error)
}
