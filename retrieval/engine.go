//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/engram-ai/engram/embedder"
	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/feedback"
	"github.com/engram-ai/engram/log"
	"github.com/engram-ai/engram/relation"
	"github.com/engram-ai/engram/retrieval/rerank"
	"github.com/engram-ai/engram/retrieval/rewrite"
	"github.com/engram-ai/engram/retrieval/source"
	"github.com/engram-ai/engram/scope"
	"github.com/engram-ai/engram/search"
	"github.com/engram-ai/engram/telemetry"
	"github.com/engram-ai/engram/vectorstore"
)

// Stage names used for timings in diagnostics.
const (
	stageRewrite    = "rewrite"
	stageSources    = "sources"
	stageFetch      = "fetch"
	stageFilter     = "filter"
	stageTags       = "tags"
	stageFeedback   = "feedback"
	stageScoreLight = "scoreLight"
	stageScoreFull  = "scoreFull"
	stageRerank     = "rerank"
	stageFormat     = "format"
)

// Skip names recorded in diagnostics when an optional stage degrades.
const (
	SkipRewrite       = "rewrite"
	SkipKeywordSearch = "keywordSearch"
	SkipVectorSearch  = "vectorSearch"
	SkipRelationWalk  = "relationWalk"
	SkipFetch         = "fetch"
	SkipFeedback      = "feedback"
	SkipRerank        = "rerank"
)

// Timeout and margin defaults; all are configuration, overridable per
// engine.
const (
	defaultSourceTimeout  = 2 * time.Second
	defaultRewriteTimeout = 3 * time.Second
	defaultRerankTimeout  = 5 * time.Second
	defaultOverfetch      = 1.5
	defaultHalfLife       = 30 * 24 * time.Hour
)

type engineConfig struct {
	perSourceLimit int
	sourceTimeout  time.Duration
	rewriteTimeout time.Duration
	rerankTimeout  time.Duration
	overfetch      float64
	halfLife       time.Duration
	weights        Weights
	relationOpts   []source.RelationOption
}

// Engine composes the pipeline stages over a fixed set of adapters. One
// engine serves many concurrent queries; all per-query state lives in the
// pipeline state, never on the engine.
type Engine struct {
	keyword   search.Adapter
	relations relation.Adapter
	entries   entry.Store
	embedder  embedder.Embedder
	vectors   vectorstore.Adapter
	feedback  feedback.Store
	rewriter  rewrite.Rewriter
	reranker  rerank.Reranker

	keywordSource  source.Source
	vectorSource   source.Source
	relationSource source.Source

	cfg engineConfig
}

// Option represents a functional option for configuring the Engine.
type Option func(*Engine)

// WithKeywordAdapter sets the keyword-search adapter. Required.
func WithKeywordAdapter(a search.Adapter) Option {
	return func(e *Engine) {
		e.keyword = a
	}
}

// WithRelationAdapter sets the relation-graph adapter. Required.
func WithRelationAdapter(a relation.Adapter) Option {
	return func(e *Engine) {
		e.relations = a
	}
}

// WithEntryStore sets the entry store. Required.
func WithEntryStore(s entry.Store) Option {
	return func(e *Engine) {
		e.entries = s
	}
}

// WithEmbedder sets the embedding backend. Optional; without it vector
// search is skipped, not an error.
func WithEmbedder(em embedder.Embedder) Option {
	return func(e *Engine) {
		e.embedder = em
	}
}

// WithVectorStore sets the vector-search adapter. Optional.
func WithVectorStore(vs vectorstore.Adapter) Option {
	return func(e *Engine) {
		e.vectors = vs
	}
}

// WithFeedbackStore sets the feedback store. Optional; without it all
// candidates keep a neutral feedback adjustment.
func WithFeedbackStore(fs feedback.Store) Option {
	return func(e *Engine) {
		e.feedback = fs
	}
}

// WithRewriter sets the query rewriter used when a query opts into
// rewriting.
func WithRewriter(r rewrite.Rewriter) Option {
	return func(e *Engine) {
		e.rewriter = r
	}
}

// WithReranker sets the reranker used when a query opts into reranking.
func WithReranker(r rerank.Reranker) Option {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithPerSourceLimit caps how many hits each source may return. The
// default is three times the query limit.
func WithPerSourceLimit(n int) Option {
	return func(e *Engine) {
		e.cfg.perSourceLimit = n
	}
}

// WithSourceTimeout sets the per-source timeout for the async fan-out.
func WithSourceTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.sourceTimeout = d
	}
}

// WithRewriteTimeout sets the query-rewrite timeout.
func WithRewriteTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.rewriteTimeout = d
	}
}

// WithRerankTimeout sets the rerank timeout.
func WithRerankTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.rerankTimeout = d
	}
}

// WithOverfetch sets the full-scoring margin multiplier. Values below 1
// are clamped to 1 so the full slice never undercuts the limit.
func WithOverfetch(m float64) Option {
	return func(e *Engine) {
		if m < 1 {
			m = 1
		}
		e.cfg.overfetch = m
	}
}

// WithRecencyHalfLife sets the half-life of the recency decay.
func WithRecencyHalfLife(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.halfLife = d
	}
}

// WithWeights sets the scoring weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.cfg.weights = w
	}
}

// WithRelationSourceOptions forwards options to the relation source, e.g.
// the maximum hop count.
func WithRelationSourceOptions(opts ...source.RelationOption) Option {
	return func(e *Engine) {
		e.cfg.relationOpts = append(e.cfg.relationOpts, opts...)
	}
}

// New creates an engine with the given options. Missing required adapters
// are reported here, before any query runs.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg: engineConfig{
			sourceTimeout:  defaultSourceTimeout,
			rewriteTimeout: defaultRewriteTimeout,
			rerankTimeout:  defaultRerankTimeout,
			overfetch:      defaultOverfetch,
			halfLife:       defaultHalfLife,
			weights:        DefaultWeights,
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.keyword == nil {
		return nil, errors.New("keyword adapter is required")
	}
	if e.relations == nil {
		return nil, errors.New("relation adapter is required")
	}
	if e.entries == nil {
		return nil, errors.New("entry store is required")
	}

	e.keywordSource = source.NewKeywordSource(e.keyword)
	e.relationSource = source.NewRelationSource(e.relations, e.cfg.relationOpts...)
	if e.embedder != nil && e.vectors != nil {
		e.vectorSource = source.NewVectorSource(e.embedder, e.vectors)
	}
	return e, nil
}

// stage is one pipeline step. The enabled predicate is evaluated once per
// query when the stage list is built, not at run time.
type stage struct {
	name    string
	enabled func(o *Options) bool
	run     func(ctx context.Context, st *pipelineState) error
}

func always(*Options) bool { return true }

func asyncOnly(o *Options) bool { return o.Mode == ModeAsync }

// stages builds the ordered stage list for one query. Sync and async share
// every stage implementation; the mode only decides which stages are
// included.
func (e *Engine) stages() []stage {
	return []stage{
		{stageRewrite, func(o *Options) bool { return asyncOnly(o) && o.Rewrite }, e.runRewrite},
		{stageSources, always, e.runSources},
		{stageFetch, always, e.runFetch},
		{stageFilter, always, e.runFilter},
		{stageTags, func(o *Options) bool { return o.Tags != nil }, e.runTags},
		{stageFeedback, always, e.runFeedback},
		{stageScoreLight, always, e.runScoreLight},
		{stageScoreFull, asyncOnly, e.runScoreFull},
		{stageRerank, func(o *Options) bool { return asyncOnly(o) && o.Rerank }, e.runRerank},
		{stageFormat, always, e.runFormat},
	}
}

// Run executes one query through the pipeline. Fatal conditions (invalid
// scope, invalid options, cancellation) surface as typed errors; every
// degradable failure is absorbed into diagnostics instead.
func (e *Engine) Run(ctx context.Context, query string, scopeReq scope.Request, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	chain, err := scope.Resolve(scopeReq)
	if err != nil {
		return nil, err
	}

	st := newPipelineState(query, chain, opts)
	stages := e.stages()

	for _, sg := range stages {
		if !sg.enabled(&opts) {
			continue
		}
		// Cancellation is checked between stages only; stages themselves
		// are short and uninterruptible.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCanceled, context.Cause(ctx))
		}
		spanCtx, span := telemetry.Tracer.Start(ctx, "retrieval."+sg.name)
		start := time.Now()
		runErr := sg.run(spanCtx, st)
		st.timings[sg.name] = time.Since(start)
		span.End()
		if runErr != nil {
			return nil, runErr
		}
	}

	result := st.result
	result.Diagnostics = st.diagnostics()
	log.Debugf("retrieval: query %q over %d scope(s) produced %d result(s), %d candidate(s) considered",
		query, len(chain), len(result.Results), len(st.candidates))
	return result, nil
}

// scorer builds the scorer bound to this engine's configuration.
func (e *Engine) scorer() *scorer {
	return &scorer{
		weights:   e.cfg.weights,
		halfLife:  e.cfg.halfLife.Seconds(),
		overfetch: e.cfg.overfetch,
	}
}

// perSourceLimit returns the hit cap handed to each source.
func (e *Engine) perSourceLimit(opts *Options) int {
	if e.cfg.perSourceLimit > 0 {
		return e.cfg.perSourceLimit
	}
	return 3 * opts.limit()
}
