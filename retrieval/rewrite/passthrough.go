//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package rewrite

import "context"

var _ Rewriter = (*Passthrough)(nil)

// Passthrough returns the original query unchanged.
type Passthrough struct{}

// NewPassthrough creates a passthrough rewriter.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// Rewrite implements Rewriter.
func (p *Passthrough) Rewrite(ctx context.Context, query string) (string, error) {
	return query, nil
}
