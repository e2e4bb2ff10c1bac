//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package retrieval

import (
	"time"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/scope"
)

// pipelineState is the single mutable object threaded through the stage
// chain. One state belongs to exactly one in-flight query; the concurrent
// source fan-out only reads from it and returns hit lists that are merged
// sequentially afterwards, so the state itself needs no locking.
type pipelineState struct {
	query          string
	effectiveQuery string
	chain          scope.Chain
	opts           Options

	// now is captured once so recency scoring is stable across the run.
	now time.Time

	candidates map[entry.Ref]*Candidate
	entries    map[entry.Ref]*entry.Entry

	// ranked is the scorer's output order over live candidates. Only the
	// scorer and reranker may reorder it; the formatter truncates it.
	ranked []*Candidate

	// result is set by the terminal format stage.
	result *Result

	timings map[string]time.Duration
	skipped []string
}

func newPipelineState(query string, chain scope.Chain, opts Options) *pipelineState {
	return &pipelineState{
		query:          query,
		effectiveQuery: query,
		chain:          chain,
		opts:           opts,
		now:            time.Now(),
		candidates:     make(map[entry.Ref]*Candidate),
		entries:        make(map[entry.Ref]*entry.Entry),
		timings:        make(map[string]time.Duration),
	}
}

// markSkipped records a degraded or unavailable stage exactly once.
func (st *pipelineState) markSkipped(name string) {
	for _, s := range st.skipped {
		if s == name {
			return
		}
	}
	st.skipped = append(st.skipped, name)
}

// liveCandidates returns the live candidates in unspecified order.
func (st *pipelineState) liveCandidates() []*Candidate {
	out := make([]*Candidate, 0, len(st.candidates))
	for _, c := range st.candidates {
		if c.live() {
			out = append(out, c)
		}
	}
	return out
}

func (st *pipelineState) diagnostics() Diagnostics {
	timings := make(map[string]float64, len(st.timings))
	for name, d := range st.timings {
		timings[name] = float64(d.Microseconds()) / 1000.0
	}
	skipped := make([]string, len(st.skipped))
	copy(skipped, st.skipped)
	return Diagnostics{TimingsMs: timings, SkippedStages: skipped}
}
