//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package retrieval

import (
	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/retrieval/source"
)

// Candidate is one entry discovered by at least one source, tracked through
// the pipeline under its logical identity. Stages only add to or update
// candidates; removal is expressed by setting Dropped so that the candidate
// universe stays intact for auditing.
type Candidate struct {
	Ref entry.Ref

	// SourceScores records each source's raw score, keyed by source name.
	SourceScores map[string]float64

	// Merged is the best raw source score, kept for auditability.
	Merged float64

	// Light and Full are the two scoring phases. Full stays zero for
	// candidates outside the full-scoring slice and in sync mode.
	Light float64
	Full  float64

	// Feedback is the normalized feedback adjustment in [-1, +1].
	Feedback float64

	// RerankDelta is the position change applied by the reranker.
	RerankDelta int

	// Dropped names the stage predicate that removed the candidate from
	// consideration; empty means the candidate is still live.
	Dropped string
}

func (c *Candidate) live() bool {
	return c.Dropped == ""
}

// mergeHits unions one source's hits into the candidate map. Merging is
// idempotent and order-independent: feeding the same hits twice, or sources
// in any order, yields the same map. Duplicate refs within one source keep
// the higher score.
func mergeHits(candidates map[entry.Ref]*Candidate, sourceName string, hits []source.Hit) {
	for _, h := range hits {
		c, ok := candidates[h.Ref]
		if !ok {
			c = &Candidate{
				Ref:          h.Ref,
				SourceScores: make(map[string]float64),
			}
			candidates[h.Ref] = c
		}
		if prev, seen := c.SourceScores[sourceName]; !seen || h.Score > prev {
			c.SourceScores[sourceName] = h.Score
		}
		if h.Score > c.Merged {
			c.Merged = h.Score
		}
	}
}
