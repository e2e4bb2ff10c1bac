//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package rewrite provides query rewriting for the retrieval pipeline.
package rewrite

import "context"

// Rewriter expands or rephrases a query before it reaches the candidate
// sources.
type Rewriter interface {
	// Rewrite improves the query text. Implementations return the original
	// text when they have nothing better.
	Rewrite(ctx context.Context, query string) (string, error)
}
