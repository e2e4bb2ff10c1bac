//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package source

import (
	"context"

	"github.com/engram-ai/engram/search"
)

var _ Source = (*KeywordSource)(nil)

// KeywordSource produces candidates from an inverted-index keyword lookup.
type KeywordSource struct {
	adapter search.Adapter
}

// NewKeywordSource creates a keyword source over the given adapter.
func NewKeywordSource(adapter search.Adapter) *KeywordSource {
	return &KeywordSource{adapter: adapter}
}

// Name implements Source.
func (s *KeywordSource) Name() string {
	return NameKeyword
}

// Find implements Source.
func (s *KeywordSource) Find(ctx context.Context, q *Query) ([]Hit, error) {
	if q.Text == "" {
		return nil, nil
	}
	found, err := s.adapter.Search(ctx, q.Text, q.Chain, q.Limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(found))
	for i, h := range found {
		hits[i] = Hit{Ref: h.Ref, Score: h.Score}
	}
	return hits, nil
}
