//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package source

import (
	"context"

	"github.com/engram-ai/engram/relation"
)

var _ Source = (*RelationSource)(nil)

// defaultMaxHops bounds the relation walk.
const defaultMaxHops = 2

// RelationSource produces candidates by walking explicit entry-to-entry
// relations outward from the query's anchor entries.
type RelationSource struct {
	adapter relation.Adapter
	maxHops int
}

// RelationOption configures a RelationSource.
type RelationOption func(*RelationSource)

// WithMaxHops sets how far the walk may travel from an anchor.
func WithMaxHops(hops int) RelationOption {
	return func(s *RelationSource) {
		if hops > 0 {
			s.maxHops = hops
		}
	}
}

// NewRelationSource creates a relation source over the given graph adapter.
func NewRelationSource(adapter relation.Adapter, opts ...RelationOption) *RelationSource {
	s := &RelationSource{adapter: adapter, maxHops: defaultMaxHops}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *RelationSource) Name() string {
	return NameRelation
}

// Find implements Source. Without anchors there is nothing to walk from.
func (s *RelationSource) Find(ctx context.Context, q *Query) ([]Hit, error) {
	if len(q.Anchors) == 0 {
		return nil, nil
	}
	found, err := s.adapter.Neighbors(ctx, q.Anchors, q.Chain, s.maxHops, q.Limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(found))
	for i, h := range found {
		hits[i] = Hit{Ref: h.Ref, Score: h.Score}
	}
	return hits, nil
}
