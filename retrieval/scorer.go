//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package retrieval

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/retrieval/source"
)

// Weights are the scoring coefficients. The first three drive the light
// phase, the rest the full phase.
type Weights struct {
	SourceMatch       float64 // weight of the best normalized source score
	Recency           float64 // weight of the update-time decay
	TagOverlap        float64 // weight of the tag/query-token overlap bonus
	Feedback          float64 // weight of the feedback adjustment
	RelationProximity float64 // weight of the relation-graph proximity bonus
	TypePriority      float64 // weight of the per-type priority bias
}

// DefaultWeights are the scoring defaults. They are configuration, not
// constants of the algorithm; callers tune them per deployment.
var DefaultWeights = Weights{
	SourceMatch:       0.6,
	Recency:           0.25,
	TagOverlap:        0.15,
	Feedback:          0.2,
	RelationProximity: 0.1,
	TypePriority:      0.1,
}

// scorer computes the two scoring phases over the pipeline state.
type scorer struct {
	weights   Weights
	halfLife  float64 // seconds
	overfetch float64
}

// sourceMaxima returns the maximum raw score per source over live
// candidates, used to normalize heterogeneous source scales onto [0, 1].
func sourceMaxima(candidates []*Candidate) map[string]float64 {
	maxima := make(map[string]float64)
	for _, c := range candidates {
		for name, raw := range c.SourceScores {
			if raw > maxima[name] {
				maxima[name] = raw
			}
		}
	}
	return maxima
}

// scoreLight computes the cheap first-pass score for every live candidate
// and establishes the ranked order. O(1) per candidate beyond the maxima
// pass; no lookups outside already-fetched fields.
func (s *scorer) scoreLight(st *pipelineState) {
	live := st.liveCandidates()
	maxima := sourceMaxima(live)
	qtoks := queryTokens(st.effectiveQuery, st.opts.Tags)

	for _, c := range live {
		e := st.entries[c.Ref]

		var srcNorm float64
		for name, raw := range c.SourceScores {
			if m := maxima[name]; m > 0 {
				if n := raw / m; n > srcNorm {
					srcNorm = n
				}
			}
		}

		decay := s.recencyDecay(st, e)
		tagBonus := tagOverlap(e.Tags, qtoks)

		c.Light = s.weights.SourceMatch*srcNorm +
			s.weights.Recency*decay +
			s.weights.TagOverlap*tagBonus
	}

	sortCandidates(live, func(c *Candidate) float64 { return c.Light })
	st.ranked = live
}

// fullSliceSize returns how many light-ranked candidates get full scores.
// The overfetch margin keeps true top-limit candidates from being cut by
// the imperfect light ordering.
func (s *scorer) fullSliceSize(limit int) int {
	n := int(math.Ceil(s.overfetch * float64(limit)))
	if n < limit {
		n = limit
	}
	return n
}

// scoreFull computes the expensive second-pass score over the top slice of
// the light ranking and reorders that slice. Candidates outside the slice
// keep their light-ranked positions after it.
func (s *scorer) scoreFull(st *pipelineState) {
	limit := st.opts.limit()
	n := s.fullSliceSize(limit)
	if n > len(st.ranked) {
		n = len(st.ranked)
	}
	slice := st.ranked[:n]

	relMax := 0.0
	for _, c := range slice {
		if raw := c.SourceScores[source.NameRelation]; raw > relMax {
			relMax = raw
		}
	}

	for _, c := range slice {
		var relNorm float64
		if relMax > 0 {
			relNorm = c.SourceScores[source.NameRelation] / relMax
		}
		c.Full = c.Light +
			s.weights.Feedback*c.Feedback +
			s.weights.RelationProximity*relNorm +
			s.weights.TypePriority*s.typeWeight(st, c.Ref.Type)
	}

	sortCandidates(slice, func(c *Candidate) float64 { return c.Full })
}

// typeWeight is the caller-supplied priority bias for a type. Without
// explicit TypeWeights it contributes nothing, so full scores reduce to
// light scores when feedback and relation signals are also absent.
func (s *scorer) typeWeight(st *pipelineState, t entry.Type) float64 {
	if st.opts.TypeWeights == nil {
		return 0
	}
	return st.opts.TypeWeights[t]
}

// recencyDecay is an exponential decay on the entry's update age with a
// configurable half-life, in (0, 1].
func (s *scorer) recencyDecay(st *pipelineState, e *entry.Entry) float64 {
	age := st.now.Sub(e.UpdatedAt).Seconds()
	if age <= 0 || s.halfLife <= 0 {
		return 1
	}
	return math.Exp2(-age / s.halfLife)
}

// sortCandidates orders by score descending with the reproducibility
// tie-break: entry type priority rank, then ID ascending.
func sortCandidates(cs []*Candidate, score func(*Candidate) float64) {
	sort.SliceStable(cs, func(i, j int) bool {
		si, sj := score(cs[i]), score(cs[j])
		if si != sj {
			return si > sj
		}
		ri, rj := cs[i].Ref.Type.Rank(), cs[j].Ref.Type.Rank()
		if ri != rj {
			return ri < rj
		}
		return cs[i].Ref.ID < cs[j].Ref.ID
	})
}

// queryTokens collects the lowercase tokens of the effective query plus any
// include tags; both count toward the tag-overlap bonus.
func queryTokens(query string, tags *TagFilter) map[string]struct{} {
	toks := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		toks[f] = struct{}{}
	}
	if tags != nil {
		for _, t := range tags.Include {
			toks[strings.ToLower(t)] = struct{}{}
		}
	}
	return toks
}

// tagOverlap returns the fraction of the entry's tags present in the query
// token set, in [0, 1].
func tagOverlap(entryTags []string, qtoks map[string]struct{}) float64 {
	if len(entryTags) == 0 || len(qtoks) == 0 {
		return 0
	}
	matched := 0
	for _, t := range entryTags {
		if _, ok := qtoks[strings.ToLower(t)]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(entryTags))
}
