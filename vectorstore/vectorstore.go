//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package vectorstore defines the vector-search adapter interface. The
// pipeline issues read-only nearest-neighbor lookups; index maintenance
// belongs to the external store.
package vectorstore

import (
	"context"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/scope"
)

// Hit is one nearest-neighbor match with its store-local similarity score.
type Hit struct {
	Ref   entry.Ref
	Score float64
}

// Adapter searches an external vector index.
type Adapter interface {
	// Search returns up to limit nearest neighbors of the query vector
	// within the given scopes.
	Search(ctx context.Context, vector []float64, chain scope.Chain, limit int) ([]Hit, error)
}
