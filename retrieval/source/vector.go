//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package source

import (
	"context"
	"fmt"

	"github.com/engram-ai/engram/embedder"
	"github.com/engram-ai/engram/vectorstore"
)

var _ Source = (*VectorSource)(nil)

// VectorSource produces candidates from a nearest-neighbor lookup. It
// composes the external embedder with the external vector index.
type VectorSource struct {
	embedder embedder.Embedder
	store    vectorstore.Adapter
}

// NewVectorSource creates a vector source over the given embedder and store.
func NewVectorSource(e embedder.Embedder, store vectorstore.Adapter) *VectorSource {
	return &VectorSource{embedder: e, store: store}
}

// Name implements Source.
func (s *VectorSource) Name() string {
	return NameVector
}

// Find implements Source.
func (s *VectorSource) Find(ctx context.Context, q *Query) ([]Hit, error) {
	if q.Text == "" {
		return nil, nil
	}
	vector, err := s.embedder.GetEmbedding(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, nil
	}
	found, err := s.store.Search(ctx, vector, q.Chain, q.Limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(found))
	for i, h := range found {
		hits[i] = Hit{Ref: h.Ref, Score: h.Score}
	}
	return hits, nil
}
