//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package retrieval

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/log"
	"github.com/engram-ai/engram/retrieval/rerank"
	"github.com/engram-ai/engram/retrieval/source"
)

// runRewrite replaces the effective query with the rewriter's output.
// Rewrite failures and timeouts degrade to the original query.
func (e *Engine) runRewrite(ctx context.Context, st *pipelineState) error {
	if e.rewriter == nil {
		st.markSkipped(SkipRewrite)
		return nil
	}
	tctx, cancel := context.WithTimeout(ctx, e.cfg.rewriteTimeout)
	defer cancel()

	rewritten, err := e.rewriter.Rewrite(tctx, st.query)
	if err != nil {
		log.Warnf("query rewrite degraded, keeping original query: %v", err)
		st.markSkipped(SkipRewrite)
		return nil
	}
	if rewritten != "" {
		st.effectiveQuery = rewritten
	}
	return nil
}

// sourceSkipNames maps source names to their diagnostics skip entries.
var sourceSkipNames = map[string]string{
	source.NameKeyword:  SkipKeywordSearch,
	source.NameVector:   SkipVectorSearch,
	source.NameRelation: SkipRelationWalk,
}

// enabledSources returns the sources this query fans out over, in the
// fixed merge order.
func (e *Engine) enabledSources(st *pipelineState) []source.Source {
	sources := []source.Source{e.keywordSource}
	if st.opts.Mode == ModeAsync && st.opts.semanticSearch() {
		if e.vectorSource != nil {
			sources = append(sources, e.vectorSource)
		} else {
			// No embedding backend configured; not an error.
			st.markSkipped(SkipVectorSearch)
		}
	}
	sources = append(sources, e.relationSource)
	return sources
}

// runSources gathers candidates from every enabled source and merges them
// by identity. In async mode the sources run concurrently, each under its
// own timeout; a source that fails or times out contributes zero candidates
// and is recorded, never aborting the query. Merging happens sequentially
// in fixed source order, though the merged map is order-independent anyway.
func (e *Engine) runSources(ctx context.Context, st *pipelineState) error {
	sources := e.enabledSources(st)
	q := &source.Query{
		Text:    st.effectiveQuery,
		Chain:   st.chain,
		Limit:   e.perSourceLimit(&st.opts),
		Anchors: st.opts.Anchors,
	}

	hits := make([][]source.Hit, len(sources))
	errs := make([]error, len(sources))

	if st.opts.Mode == ModeAsync {
		pool, err := ants.NewPool(len(sources))
		if err != nil {
			return err
		}
		defer pool.Release()

		var wg sync.WaitGroup
		for i, src := range sources {
			wg.Add(1)
			idx, s := i, src
			if err := pool.Submit(func() {
				defer wg.Done()
				tctx, cancel := context.WithTimeout(ctx, e.cfg.sourceTimeout)
				defer cancel()
				hits[idx], errs[idx] = s.Find(tctx, q)
			}); err != nil {
				wg.Done()
				errs[i] = err
			}
		}
		wg.Wait()
	} else {
		for i, s := range sources {
			hits[i], errs[i] = s.Find(ctx, q)
		}
	}

	for i, s := range sources {
		if errs[i] != nil {
			log.Warnf("source %s degraded: %v", s.Name(), errs[i])
			st.markSkipped(sourceSkipNames[s.Name()])
			continue
		}
		mergeHits(st.candidates, s.Name(), hits[i])
	}
	return nil
}

// runFetch batch-loads entry content, one call per entry type. Candidates
// whose entry no longer exists are dropped silently: deletion between
// discovery and fetch is expected under concurrent writes.
func (e *Engine) runFetch(ctx context.Context, st *pipelineState) error {
	byType := make(map[entry.Type][]string)
	for ref, c := range st.candidates {
		if c.live() {
			byType[ref.Type] = append(byType[ref.Type], ref.ID)
		}
	}

	types := make([]entry.Type, 0, len(byType))
	for t := range byType {
		sort.Strings(byType[t])
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var mu sync.Mutex
	failed := make(map[entry.Type]bool)
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range types {
		typ, ids := t, byType[t]
		g.Go(func() error {
			fetched, err := e.entries.BatchGet(gctx, typ, ids)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warnf("entry fetch for type %s degraded: %v", typ, err)
				failed[typ] = true
				return nil
			}
			for _, en := range fetched {
				st.entries[en.Ref()] = en
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(failed) > 0 {
		st.markSkipped(SkipFetch)
	}

	for ref, c := range st.candidates {
		if !c.live() {
			continue
		}
		if _, ok := st.entries[ref]; ok {
			continue
		}
		if failed[ref.Type] {
			c.Dropped = "fetch"
		} else {
			c.Dropped = "missing"
		}
	}
	return nil
}

// runFilter applies the structural predicates; pure set reduction, no
// scoring.
func (e *Engine) runFilter(ctx context.Context, st *pipelineState) error {
	var typeSet map[entry.Type]struct{}
	if len(st.opts.Types) > 0 {
		typeSet = make(map[entry.Type]struct{}, len(st.opts.Types))
		for _, t := range st.opts.Types {
			typeSet[t] = struct{}{}
		}
	}
	f := st.opts.Filters

	for ref, c := range st.candidates {
		if !c.live() {
			continue
		}
		en := st.entries[ref]
		switch {
		case typeSet != nil && !inTypeSet(typeSet, ref.Type):
			c.Dropped = "type"
		case !en.Active:
			c.Dropped = "inactive"
		case f != nil && f.Category != "" && en.Category != f.Category:
			c.Dropped = "category"
		case f != nil && f.Priority != nil && !inPriorityRange(f.Priority, en.Priority):
			c.Dropped = "priority"
		case f != nil && f.Date != nil && !inDateRange(f.Date, en.UpdatedAt):
			c.Dropped = "date"
		}
	}
	return nil
}

func inTypeSet(set map[entry.Type]struct{}, t entry.Type) bool {
	_, ok := set[t]
	return ok
}

func inPriorityRange(pr *PriorityRange, p int) bool {
	if p < pr.Min {
		return false
	}
	return pr.Max == 0 || p <= pr.Max
}

func inDateRange(dr *DateRange, t time.Time) bool {
	if !dr.From.IsZero() && t.Before(dr.From) {
		return false
	}
	return dr.To.IsZero() || !t.After(dr.To)
}

// runTags applies the include/exclude tag sets over the fetched entries.
func (e *Engine) runTags(ctx context.Context, st *pipelineState) error {
	tf := st.opts.Tags
	for ref, c := range st.candidates {
		if !c.live() {
			continue
		}
		en := st.entries[ref]
		if len(tf.Include) > 0 && !hasAnyTag(en, tf.Include) {
			c.Dropped = "tags"
			continue
		}
		if hasAnyTag(en, tf.Exclude) {
			c.Dropped = "tags"
		}
	}
	return nil
}

func hasAnyTag(en *entry.Entry, tags []string) bool {
	for _, t := range tags {
		if en.HasTag(t) {
			return true
		}
	}
	return false
}

// runFeedback annotates candidates with their normalized feedback
// adjustment. Candidates with no history keep the neutral zero.
func (e *Engine) runFeedback(ctx context.Context, st *pipelineState) error {
	if e.feedback == nil {
		st.markSkipped(SkipFeedback)
		return nil
	}
	live := st.liveCandidates()
	if len(live) == 0 {
		return nil
	}
	refs := make([]entry.Ref, len(live))
	for i, c := range live {
		refs[i] = c.Ref
	}

	aggregates, err := e.feedback.GetAggregates(ctx, refs)
	if err != nil {
		log.Warnf("feedback lookup degraded, scores stay neutral: %v", err)
		st.markSkipped(SkipFeedback)
		return nil
	}
	for _, c := range live {
		if agg, ok := aggregates[c.Ref]; ok {
			c.Feedback = agg.Adjustment()
		}
	}
	return nil
}

// runScoreLight computes phase-1 scores over every live candidate and
// establishes the ranked order.
func (e *Engine) runScoreLight(ctx context.Context, st *pipelineState) error {
	e.scorer().scoreLight(st)
	return nil
}

// runScoreFull computes phase-2 scores over the overfetched top slice.
func (e *Engine) runScoreFull(ctx context.Context, st *pipelineState) error {
	e.scorer().scoreFull(st)
	return nil
}

// runRerank reorders the post-phase-2 top slice through the external
// reranker. On timeout or error the pre-rerank order is kept unchanged.
func (e *Engine) runRerank(ctx context.Context, st *pipelineState) error {
	if e.reranker == nil {
		st.markSkipped(SkipRerank)
		return nil
	}
	n := e.scorer().fullSliceSize(st.opts.limit())
	if n > len(st.ranked) {
		n = len(st.ranked)
	}
	if n < 2 {
		return nil
	}
	slice := st.ranked[:n]

	items := make([]*rerank.Item, n)
	byRef := make(map[entry.Ref]*Candidate, n)
	oldIndex := make(map[entry.Ref]int, n)
	for i, c := range slice {
		items[i] = &rerank.Item{Entry: st.entries[c.Ref], Score: c.Full}
		byRef[c.Ref] = c
		oldIndex[c.Ref] = i
	}

	tctx, cancel := context.WithTimeout(ctx, e.cfg.rerankTimeout)
	defer cancel()

	reordered, err := e.reranker.Rerank(tctx, st.effectiveQuery, items)
	if err != nil {
		log.Warnf("rerank degraded, keeping pre-rerank order: %v", err)
		st.markSkipped(SkipRerank)
		return nil
	}
	if len(reordered) != n {
		log.Warnf("reranker returned %d item(s) for %d, keeping pre-rerank order", len(reordered), n)
		st.markSkipped(SkipRerank)
		return nil
	}

	newSlice := make([]*Candidate, 0, n)
	seen := make(map[entry.Ref]bool, n)
	for _, it := range reordered {
		ref := it.Entry.Ref()
		c, ok := byRef[ref]
		if !ok || seen[ref] {
			log.Warnf("reranker output is not a permutation of its input, keeping pre-rerank order")
			st.markSkipped(SkipRerank)
			return nil
		}
		seen[ref] = true
		newSlice = append(newSlice, c)
	}
	for i, c := range newSlice {
		c.RerankDelta = oldIndex[c.Ref] - i
	}
	copy(st.ranked[:n], newSlice)
	return nil
}

// runFormat truncates the ranked candidates to the limit and shapes the
// public result. Terminal stage; always succeeds. Diagnostics are attached
// after the stage loop so its own timing is included.
func (e *Engine) runFormat(ctx context.Context, st *pipelineState) error {
	limit := st.opts.limit()
	n := len(st.ranked)
	if n > limit {
		n = limit
	}

	items := make([]Item, 0, n)
	for _, c := range st.ranked[:n] {
		score := c.Light
		if st.opts.Mode == ModeAsync {
			score = c.Full
		}
		sourceScores := make(map[string]float64, len(c.SourceScores))
		for name, raw := range c.SourceScores {
			sourceScores[name] = raw
		}
		items = append(items, Item{
			Type:  c.Ref.Type,
			ID:    c.Ref.ID,
			Score: score,
			Breakdown: ScoreBreakdown{
				Light:              c.Light,
				Full:               c.Full,
				SourceScores:       sourceScores,
				FeedbackAdjustment: c.Feedback,
				RerankDelta:        c.RerankDelta,
			},
			Entry: st.entries[c.Ref],
		})
	}
	st.result = &Result{Results: items}
	return nil
}
