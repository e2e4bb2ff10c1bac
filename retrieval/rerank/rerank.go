//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package rerank provides result re-ranking for the retrieval pipeline.
package rerank

import (
	"context"

	"github.com/engram-ai/engram/entry"
)

// Item is one rankable result.
type Item struct {
	// Entry is the fetched entry under consideration.
	Entry *entry.Entry

	// Score is the pre-rerank relevance score.
	Score float64
}

// Reranker reorders an already-ranked short list with finer-grained
// comparison. Implementations must return a permutation of the input:
// same items, never more, never fewer.
type Reranker interface {
	Rerank(ctx context.Context, query string, items []*Item) ([]*Item, error)
}
