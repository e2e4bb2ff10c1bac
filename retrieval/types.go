//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package retrieval implements the multi-stage memory-retrieval pipeline:
// scope resolution, parallel candidate sources, deterministic merging,
// two-phase scoring, optional LLM query rewrite and rerank, and formatting.
package retrieval

import (
	"errors"
	"fmt"
	"time"

	"github.com/engram-ai/engram/entry"
)

// Mode selects the pipeline variant.
type Mode string

const (
	// ModeSync runs only the stages that never touch the network:
	// keyword and relation sources, light scoring, no rewrite or rerank.
	ModeSync Mode = "sync"
	// ModeAsync runs the full stage list, including vector search,
	// query rewrite, full scoring, and rerank, each under its own timeout.
	ModeAsync Mode = "async"
)

var (
	// ErrInvalidOptions is returned when query options fail validation.
	ErrInvalidOptions = errors.New("invalid options")
	// ErrCanceled is returned when the caller cancels an in-flight query.
	// Partial results are never returned.
	ErrCanceled = errors.New("query canceled")
)

// DefaultLimit is the result limit applied when the caller passes none.
const DefaultLimit = 20

// TagFilter restricts results by entry tags. Include keeps entries carrying
// at least one listed tag; Exclude drops entries carrying any listed tag.
type TagFilter struct {
	Include []string
	Exclude []string
}

// PriorityRange bounds entry priority, inclusive. Max 0 means unbounded.
type PriorityRange struct {
	Min int
	Max int
}

// DateRange bounds entry update time. Zero values are unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Filters holds the structural predicates applied by the filter stage.
type Filters struct {
	Category string
	Priority *PriorityRange
	Date     *DateRange
}

// Options configures one query invocation.
type Options struct {
	// Mode selects sync or async execution. Required.
	Mode Mode

	// Types restricts results to the given entry types. Empty means all.
	Types []entry.Type

	// Tags restricts results by tag.
	Tags *TagFilter

	// Limit caps the number of results. 0 means DefaultLimit.
	Limit int

	// SemanticSearch enables the vector source in async mode. Defaults to
	// true; the stage is still skipped (and recorded skipped) when no
	// embedding backend is configured.
	SemanticSearch *bool

	// Rerank enables LLM reranking of the top slice in async mode.
	Rerank bool

	// Rewrite enables LLM query rewriting in async mode.
	Rewrite bool

	// Filters holds structural predicates.
	Filters *Filters

	// Anchors are entries already in the caller's working context; the
	// relation source walks outward from them.
	Anchors []entry.Ref

	// TypeWeights overrides the per-type priority weight used by full
	// scoring, letting callers bias e.g. guidelines over knowledge.
	TypeWeights map[entry.Type]float64
}

func (o *Options) semanticSearch() bool {
	if o.SemanticSearch == nil {
		return true
	}
	return *o.SemanticSearch
}

func (o *Options) validate() error {
	switch o.Mode {
	case ModeSync, ModeAsync:
	default:
		return fmt.Errorf("%w: mode must be %q or %q", ErrInvalidOptions, ModeSync, ModeAsync)
	}
	if o.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidOptions)
	}
	for _, t := range o.Types {
		if !t.Valid() {
			return fmt.Errorf("%w: unsupported entry type %q", ErrInvalidOptions, t)
		}
	}
	if o.Filters != nil && o.Filters.Priority != nil {
		pr := o.Filters.Priority
		if pr.Max != 0 && pr.Max < pr.Min {
			return fmt.Errorf("%w: priority range max below min", ErrInvalidOptions)
		}
	}
	return nil
}

// limit returns the effective result limit.
func (o *Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// ScoreBreakdown explains how one result's score was computed. It is part
// of the public result so ranking decisions stay reproducible and
// diagnosable.
type ScoreBreakdown struct {
	// Light is the cheap first-pass score computed for every candidate.
	Light float64 `json:"light"`
	// Full is the second-pass score; zero in sync mode, where Light is the
	// final score.
	Full float64 `json:"full"`
	// SourceScores holds each source's raw contribution, keyed by source
	// name.
	SourceScores map[string]float64 `json:"source_scores"`
	// FeedbackAdjustment is the normalized feedback factor in [-1, +1].
	FeedbackAdjustment float64 `json:"feedback_adjustment"`
	// RerankDelta is how many positions the reranker moved the result;
	// positive means promoted.
	RerankDelta int `json:"rerank_delta"`
}

// Item is one formatted result.
type Item struct {
	Type      entry.Type     `json:"type"`
	ID        string         `json:"id"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Entry     *entry.Entry   `json:"entry"`
}

// Diagnostics reports per-stage timings and the optional stages that were
// skipped or degraded during the run.
type Diagnostics struct {
	TimingsMs     map[string]float64 `json:"timings_ms"`
	SkippedStages []string           `json:"skipped_stages"`
}

// Result is the ordered, deduplicated outcome of one query.
type Result struct {
	Results     []Item      `json:"results"`
	Diagnostics Diagnostics `json:"diagnostics"`
}
