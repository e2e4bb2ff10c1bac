//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package source defines the candidate-source contract shared by the
// keyword, vector, and relation producers, plus their adapter glue.
package source

import (
	"context"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/scope"
)

// Well-known source names recorded in candidate score maps and diagnostics.
const (
	NameKeyword  = "keyword"
	NameVector   = "vector"
	NameRelation = "relation"
)

// Hit is one candidate produced by a source, scored on the source's own
// scale. Scores from different sources are not comparable until the scorer
// normalizes them.
type Hit struct {
	Ref   entry.Ref
	Score float64
}

// Query carries everything a source may need to produce candidates.
type Query struct {
	// Text is the effective (possibly rewritten) query text.
	Text string

	// Chain is the resolved scope chain, most specific first.
	Chain scope.Chain

	// Limit caps how many hits the source returns.
	Limit int

	// Anchors are entries already in the caller's working context; the
	// relation source walks outward from them.
	Anchors []entry.Ref
}

// Source produces scored candidates for a query. Implementations must be
// safe for concurrent use: async mode fans out over all enabled sources.
type Source interface {
	// Name returns the source's stable name.
	Name() string

	// Find returns candidates for the query. Returning no hits is not an
	// error; sources that cannot serve the query return an empty list.
	Find(ctx context.Context, q *Query) ([]Hit, error)
}
