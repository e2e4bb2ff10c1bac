//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package search defines the keyword-search adapter interface. The inverted
// index itself is an external store; the pipeline only issues lookups.
package search

import (
	"context"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/scope"
)

// Hit is one keyword match with its index-local score. Scores are not
// comparable across adapters without normalization.
type Hit struct {
	Ref   entry.Ref
	Score float64
}

// Adapter looks up entries by keyword relevance within a scope chain.
type Adapter interface {
	// Search returns up to limit hits for the query within the given scopes.
	// An empty query yields no hits.
	Search(ctx context.Context, query string, chain scope.Chain, limit int) ([]Hit, error)
}
