//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package feedback defines the adapter interface to the historical feedback
// store and the aggregate shape the scorer consumes.
package feedback

import (
	"context"

	"github.com/engram-ai/engram/entry"
)

// Aggregate summarizes historical feedback for one entry.
type Aggregate struct {
	SuccessCount int
	FailureCount int
}

// Adjustment maps the aggregate onto [-1, +1]: all-success gives +1,
// all-failure gives -1, no history gives a neutral 0.
func (a Aggregate) Adjustment() float64 {
	total := a.SuccessCount + a.FailureCount
	if total == 0 {
		return 0
	}
	return float64(a.SuccessCount-a.FailureCount) / float64(total)
}

// Store reads aggregated feedback. The pipeline never writes feedback;
// recording outcomes belongs to the caller.
type Store interface {
	// GetAggregates returns the aggregates for the given refs. Refs with no
	// history may be omitted from the map.
	GetAggregates(ctx context.Context, refs []entry.Ref) (map[entry.Ref]Aggregate, error)
}
