//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package retrieval

import (
	"context"
	"hash/fnv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram/entry"
	entmem "github.com/engram-ai/engram/entry/inmemory"
	fbmem "github.com/engram-ai/engram/feedback/inmemory"
	relmem "github.com/engram-ai/engram/relation/inmemory"
	"github.com/engram-ai/engram/retrieval/rerank"
	"github.com/engram-ai/engram/retrieval/rewrite"
	"github.com/engram-ai/engram/retrieval/source"
	"github.com/engram-ai/engram/scope"
	"github.com/engram-ai/engram/search"
	searchmem "github.com/engram-ai/engram/search/inmemory"
	"github.com/engram-ai/engram/textgen"
	vecmem "github.com/engram-ai/engram/vectorstore/inmemory"
)

// tokenEmbedder is a deterministic test embedder: each token contributes a
// hash-derived component, so overlapping texts land near each other.
type tokenEmbedder struct{}

func (tokenEmbedder) GetDimensions() int { return 16 }

func (tokenEmbedder) GetEmbedding(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, 16)
	for _, tok := range tokensOf(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%16]++
	}
	return vec, nil
}

func tokensOf(text string) []string {
	var toks []string
	cur := []rune{}
	flush := func() {
		if len(cur) > 0 {
			toks = append(toks, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			cur = append(cur, r)
		case r >= 'A' && r <= 'Z':
			cur = append(cur, r+('a'-'A'))
		default:
			flush()
		}
	}
	flush()
	return toks
}

type fixture struct {
	index   *searchmem.Index
	vectors *vecmem.Store
	graph   *relmem.Graph
	store   *entmem.Store
	fb      *fbmem.Store
}

func (f *fixture) add(e *entry.Entry) *entry.Entry {
	e.Active = true
	f.store.Put(e)
	f.index.Index(e)
	f.graph.SetScope(e.Ref(), e.Scope)
	vec, _ := tokenEmbedder{}.GetEmbedding(context.Background(), e.Content)
	f.vectors.Add(e.Ref(), e.Scope, vec)
	return e
}

func newFixture() *fixture {
	f := &fixture{
		index:   searchmem.New(),
		vectors: vecmem.New(),
		graph:   relmem.New(),
		store:   entmem.New(),
		fb:      fbmem.New(),
	}
	now := time.Now()
	f.add(&entry.Entry{
		ID: "g1", Type: entry.TypeGuideline, Scope: scope.Global,
		Content: "always run the linter before committing code",
		Tags:    []string{"lint", "ci"}, UpdatedAt: now,
	})
	f.add(&entry.Entry{
		ID: "k1", Type: entry.TypeKnowledge,
		Scope:    scope.Scope{Type: scope.TypeProject, ID: "p1"},
		Content:  "the deploy pipeline uses a blue green rollout",
		Tags:     []string{"deploy"},
		Category: "infra", Priority: 5, UpdatedAt: now,
	})
	f.add(&entry.Entry{
		ID: "t1", Type: entry.TypeTool, Scope: scope.Global,
		Content: "ripgrep searches code for patterns very fast",
		Tags:    []string{"search"}, UpdatedAt: now,
	})
	f.add(&entry.Entry{
		ID: "x1", Type: entry.TypeExperience,
		Scope:   scope.Scope{Type: scope.TypeProject, ID: "p1"},
		Content: "the linter once rejected generated code and blocked the release",
		Tags:    []string{"lint"}, UpdatedAt: now.Add(-24 * time.Hour),
	})
	return f
}

func (f *fixture) engine(t *testing.T, extra ...Option) *Engine {
	t.Helper()
	opts := append([]Option{
		WithKeywordAdapter(f.index),
		WithRelationAdapter(f.graph),
		WithEntryStore(f.store),
		WithFeedbackStore(f.fb),
	}, extra...)
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func projectScope() scope.Request {
	return scope.Request{Type: scope.TypeProject, ID: "p1", Inherit: true}
}

func ids(res *Result) []string {
	out := make([]string, len(res.Results))
	for i, item := range res.Results {
		out[i] = item.ID
	}
	return out
}

func TestRunDeterminism(t *testing.T) {
	f := newFixture()
	e := f.engine(t, WithEmbedder(tokenEmbedder{}), WithVectorStore(f.vectors))
	opts := Options{Mode: ModeAsync, Limit: 10}

	first, err := e.Run(context.Background(), "linter code", projectScope(), opts)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), "linter code", projectScope(), opts)
	require.NoError(t, err)

	require.NotEmpty(t, first.Results)
	// Timings vary run to run; the ordered results must not.
	assert.Equal(t, first.Results, second.Results)
}

func TestSyncAsyncAgreement(t *testing.T) {
	f := newFixture()
	// No embedding backend, no rerank, no feedback history: the modes must
	// agree in order and score on their shared stages.
	e := f.engine(t)

	syncRes, err := e.Run(context.Background(), "linter code", projectScope(), Options{Mode: ModeSync, Limit: 10})
	require.NoError(t, err)
	asyncRes, err := e.Run(context.Background(), "linter code", projectScope(), Options{Mode: ModeAsync, Limit: 10})
	require.NoError(t, err)

	require.Equal(t, len(syncRes.Results), len(asyncRes.Results))
	for i := range syncRes.Results {
		assert.Equal(t, syncRes.Results[i].ID, asyncRes.Results[i].ID)
		assert.InDelta(t, syncRes.Results[i].Score, asyncRes.Results[i].Score, 1e-12)
	}
}

func TestVectorSearchDegradesWhenUnconfigured(t *testing.T) {
	f := newFixture()
	e := f.engine(t) // no embedder, no vector store

	res, err := e.Run(context.Background(), "linter code", projectScope(), Options{Mode: ModeAsync})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Results)
	assert.Contains(t, res.Diagnostics.SkippedStages, SkipVectorSearch)
}

func TestVectorSearchContributes(t *testing.T) {
	f := newFixture()
	e := f.engine(t, WithEmbedder(tokenEmbedder{}), WithVectorStore(f.vectors))

	res, err := e.Run(context.Background(), "deploy rollout", projectScope(), Options{Mode: ModeAsync})
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.NotContains(t, res.Diagnostics.SkippedStages, SkipVectorSearch)

	top := res.Results[0]
	assert.Equal(t, "k1", top.ID)
	assert.Contains(t, top.Breakdown.SourceScores, source.NameVector)
	assert.Contains(t, top.Breakdown.SourceScores, source.NameKeyword)
}

func TestEmptyQueryReturnsEmptyResult(t *testing.T) {
	f := newFixture()
	e := f.engine(t, WithEmbedder(tokenEmbedder{}), WithVectorStore(f.vectors))

	res, err := e.Run(context.Background(), "",
		scope.Request{Type: scope.TypeGlobal}, Options{Mode: ModeAsync, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestScopeNoInheritExcludesGlobal(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	// g1 lives at global; a project-only query must not see it.
	res, err := e.Run(context.Background(), "linter code",
		scope.Request{Type: scope.TypeProject, ID: "p1"}, Options{Mode: ModeSync})
	require.NoError(t, err)
	for _, item := range res.Results {
		assert.NotEqual(t, "g1", item.ID)
	}
	assert.Contains(t, ids(res), "x1")
}

// duplicatingAdapter reports the same ref once per scope it is visible in,
// the way a real index does for an entry stored at several levels.
type duplicatingAdapter struct{}

func (duplicatingAdapter) Search(ctx context.Context, query string, chain scope.Chain, limit int) ([]search.Hit, error) {
	return []search.Hit{
		{Ref: entry.Ref{Type: entry.TypeGuideline, ID: "g1"}, Score: 0.9},
		{Ref: entry.Ref{Type: entry.TypeGuideline, ID: "g1"}, Score: 0.7},
	}, nil
}

func TestScopeInheritanceDedup(t *testing.T) {
	f := newFixture()
	e := f.engine(t, WithKeywordAdapter(duplicatingAdapter{}))

	res, err := e.Run(context.Background(), "linter",
		scope.Request{Type: scope.TypeSession, ID: "s1", ProjectID: "p1", Inherit: true},
		Options{Mode: ModeSync})
	require.NoError(t, err)

	seen := 0
	for _, item := range res.Results {
		if item.ID == "g1" {
			seen++
			assert.Equal(t, 0.9, item.Breakdown.SourceScores[source.NameKeyword])
		}
	}
	assert.Equal(t, 1, seen, "an entry visible at several scopes appears exactly once")
}

// stuckSearch blocks until its context is canceled, like a hung backend.
type stuckSearch struct{}

func (stuckSearch) Search(ctx context.Context, query string, chain scope.Chain, limit int) ([]search.Hit, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSourceTimeoutDegrades(t *testing.T) {
	f := newFixture()
	g1 := entry.Ref{Type: entry.TypeGuideline, ID: "g1"}
	x1 := entry.Ref{Type: entry.TypeExperience, ID: "x1"}
	f.graph.Relate(g1, x1, 1)

	e := f.engine(t,
		WithKeywordAdapter(stuckSearch{}),
		WithSourceTimeout(30*time.Millisecond),
	)
	res, err := e.Run(context.Background(), "linter code", projectScope(),
		Options{Mode: ModeAsync, Anchors: []entry.Ref{g1}})
	require.NoError(t, err)

	// The hung keyword source is skipped; the relation walk still delivers.
	assert.Contains(t, res.Diagnostics.SkippedStages, SkipKeywordSearch)
	require.Contains(t, ids(res), "x1")
	for _, item := range res.Results {
		assert.NotContains(t, item.Breakdown.SourceScores, source.NameKeyword)
	}
}

func TestRewriteTimeoutKeepsOriginalQuery(t *testing.T) {
	f := newFixture()
	stuck := textgen.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	e := f.engine(t,
		WithRewriter(rewrite.NewLLMRewriter(stuck)),
		WithRewriteTimeout(30*time.Millisecond),
	)
	res, err := e.Run(context.Background(), "linter code", projectScope(),
		Options{Mode: ModeAsync, Rewrite: true})
	require.NoError(t, err)

	assert.Contains(t, res.Diagnostics.SkippedStages, SkipRewrite)
	// The original query still drives the sources.
	assert.Contains(t, ids(res), "g1")
}

func TestRerankTimeoutKeepsPreRerankOrder(t *testing.T) {
	f := newFixture()
	stuck := textgen.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	base := f.engine(t)
	baseline, err := base.Run(context.Background(), "linter code", projectScope(), Options{Mode: ModeAsync})
	require.NoError(t, err)

	e := f.engine(t,
		WithReranker(rerank.NewLLMReranker(stuck)),
		WithRerankTimeout(30*time.Millisecond),
	)
	res, err := e.Run(context.Background(), "linter code", projectScope(), Options{Mode: ModeAsync, Rerank: true})
	require.NoError(t, err)

	assert.Equal(t, ids(baseline), ids(res))
	assert.Contains(t, res.Diagnostics.SkippedStages, SkipRerank)
}

func TestRerankReordersTopSlice(t *testing.T) {
	f := newFixture()
	// The generator reverses whatever list it is shown.
	reverse := textgen.GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		return "3,2,1", nil
	})

	base := f.engine(t)
	baseline, err := base.Run(context.Background(), "linter code", projectScope(), Options{Mode: ModeAsync, Limit: 2})
	require.NoError(t, err)
	require.Len(t, baseline.Results, 2)

	e := f.engine(t, WithReranker(rerank.NewLLMReranker(reverse)))
	res, err := e.Run(context.Background(), "linter code", projectScope(), Options{Mode: ModeAsync, Limit: 2, Rerank: true})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)

	assert.NotContains(t, res.Diagnostics.SkippedStages, SkipRerank)
	assert.NotEqual(t, ids(baseline), ids(res))
	assert.NotZero(t, res.Results[0].Breakdown.RerankDelta)
}

type fakeRewriter struct {
	out string
}

func (r fakeRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	return r.out, nil
}

func TestRewriteChangesEffectiveQuery(t *testing.T) {
	f := newFixture()
	e := f.engine(t, WithRewriter(fakeRewriter{out: "ripgrep patterns"}))

	// The original query matches nothing; the rewritten query matches t1.
	res, err := e.Run(context.Background(), "qqqq",
		scope.Request{Type: scope.TypeGlobal}, Options{Mode: ModeAsync, Rewrite: true})
	require.NoError(t, err)
	assert.Contains(t, ids(res), "t1")
}

func TestRewriteUnconfiguredIsSkipped(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	res, err := e.Run(context.Background(), "linter", projectScope(), Options{Mode: ModeAsync, Rewrite: true})
	require.NoError(t, err)
	assert.Contains(t, res.Diagnostics.SkippedStages, SkipRewrite)
}

func TestRelationAnchorsSurfaceNeighbors(t *testing.T) {
	f := newFixture()
	g1 := entry.Ref{Type: entry.TypeGuideline, ID: "g1"}
	x1 := entry.Ref{Type: entry.TypeExperience, ID: "x1"}
	f.graph.Relate(g1, x1, 1)

	e := f.engine(t)
	// Query text matches nothing; only the relation walk can produce x1.
	res, err := e.Run(context.Background(), "qqqq", projectScope(),
		Options{Mode: ModeSync, Anchors: []entry.Ref{g1}})
	require.NoError(t, err)
	require.Equal(t, []string{"x1"}, ids(res))
	assert.Contains(t, res.Results[0].Breakdown.SourceScores, source.NameRelation)
}

func TestTypeFilter(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	res, err := e.Run(context.Background(), "linter code", projectScope(),
		Options{Mode: ModeSync, Types: []entry.Type{entry.TypeGuideline}})
	require.NoError(t, err)
	for _, item := range res.Results {
		assert.Equal(t, entry.TypeGuideline, item.Type)
	}
	assert.Contains(t, ids(res), "g1")
}

func TestTagIncludeExclude(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	res, err := e.Run(context.Background(), "linter code", projectScope(),
		Options{Mode: ModeSync, Tags: &TagFilter{Include: []string{"lint"}}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1", "x1"}, ids(res))

	res, err = e.Run(context.Background(), "linter code", projectScope(),
		Options{Mode: ModeSync, Tags: &TagFilter{Exclude: []string{"ci"}}})
	require.NoError(t, err)
	assert.NotContains(t, ids(res), "g1")
}

func TestStructuralFilters(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	res, err := e.Run(context.Background(), "deploy pipeline rollout", projectScope(),
		Options{Mode: ModeSync, Filters: &Filters{Category: "infra"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, ids(res))

	res, err = e.Run(context.Background(), "deploy pipeline rollout", projectScope(),
		Options{Mode: ModeSync, Filters: &Filters{Priority: &PriorityRange{Min: 6}}})
	require.NoError(t, err)
	assert.NotContains(t, ids(res), "k1")

	res, err = e.Run(context.Background(), "linter code", projectScope(),
		Options{Mode: ModeSync, Filters: &Filters{Date: &DateRange{From: time.Now().Add(-time.Hour)}}})
	require.NoError(t, err)
	assert.NotContains(t, ids(res), "x1")
}

func TestInactiveEntriesDropped(t *testing.T) {
	f := newFixture()
	dead := f.add(&entry.Entry{
		ID: "g9", Type: entry.TypeGuideline, Scope: scope.Global,
		Content: "obsolete linter rule", UpdatedAt: time.Now(),
	})
	dead.Active = false
	f.store.Put(dead)

	e := f.engine(t)
	res, err := e.Run(context.Background(), "linter", projectScope(), Options{Mode: ModeSync})
	require.NoError(t, err)
	assert.NotContains(t, ids(res), "g9")
}

func TestFeedbackAdjustmentInBreakdown(t *testing.T) {
	f := newFixture()
	g1 := entry.Ref{Type: entry.TypeGuideline, ID: "g1"}
	f.fb.Record(g1, true)
	f.fb.Record(g1, true)

	e := f.engine(t)
	res, err := e.Run(context.Background(), "linter code", projectScope(), Options{Mode: ModeAsync})
	require.NoError(t, err)

	for _, item := range res.Results {
		if item.ID == "g1" {
			assert.Equal(t, 1.0, item.Breakdown.FeedbackAdjustment)
			return
		}
	}
	t.Fatal("g1 not in results")
}

func TestDeletedEntryDroppedSilently(t *testing.T) {
	f := newFixture()
	// Indexed but deleted from the store before fetch.
	f.store.Delete(entry.Ref{Type: entry.TypeGuideline, ID: "g1"})

	e := f.engine(t)
	res, err := e.Run(context.Background(), "linter code", projectScope(), Options{Mode: ModeSync})
	require.NoError(t, err)
	assert.NotContains(t, ids(res), "g1")
}

func TestCancellation(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Run(ctx, "linter", projectScope(), Options{Mode: ModeSync})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Nil(t, res)
}

func TestInvalidOptions(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	_, err := e.Run(context.Background(), "q", projectScope(), Options{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = e.Run(context.Background(), "q", projectScope(), Options{Mode: ModeSync, Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = e.Run(context.Background(), "q", projectScope(),
		Options{Mode: ModeSync, Types: []entry.Type{"secret"}})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestInvalidScope(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	_, err := e.Run(context.Background(), "q",
		scope.Request{Type: scope.TypeProject}, Options{Mode: ModeSync})
	assert.ErrorIs(t, err, scope.ErrInvalidScope)
}

func TestNewRequiresAdapters(t *testing.T) {
	_, err := New()
	require.Error(t, err)

	f := newFixture()
	_, err = New(WithKeywordAdapter(f.index), WithRelationAdapter(f.graph))
	require.Error(t, err)
}

func TestTimingsRecorded(t *testing.T) {
	f := newFixture()
	e := f.engine(t)

	res, err := e.Run(context.Background(), "linter", projectScope(), Options{Mode: ModeSync})
	require.NoError(t, err)
	assert.Contains(t, res.Diagnostics.TimingsMs, stageSources)
	assert.Contains(t, res.Diagnostics.TimingsMs, stageScoreLight)
	assert.Contains(t, res.Diagnostics.TimingsMs, stageFormat)
}
