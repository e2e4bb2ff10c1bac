//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package embedder defines the interface to the external embedding subsystem.
// Embedding generation itself lives outside the retrieval core; the pipeline
// only consumes vectors.
package embedder

import "context"

// Embedder turns query text into an embedding vector.
type Embedder interface {
	// GetEmbedding generates an embedding vector for the given text.
	// The returned slice may be empty when the backend produced no vector;
	// callers treat that like a miss, not an error.
	GetEmbedding(ctx context.Context, text string) ([]float64, error)

	// GetDimensions returns the dimensionality of produced embeddings,
	// or 0 when unknown.
	GetDimensions() int
}
