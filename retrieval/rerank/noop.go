//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package rerank

import "context"

var _ Reranker = (*Noop)(nil)

// Noop keeps the incoming order unchanged.
type Noop struct{}

// NewNoop creates a no-op reranker.
func NewNoop() *Noop {
	return &Noop{}
}

// Rerank implements Reranker.
func (n *Noop) Rerank(ctx context.Context, query string, items []*Item) ([]*Item, error) {
	return items, nil
}
