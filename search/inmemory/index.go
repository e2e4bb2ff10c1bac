//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package inmemory provides an in-memory inverted index implementing the
// keyword-search adapter.
package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/engram-ai/engram/entry"
	"github.com/engram-ai/engram/scope"
	"github.com/engram-ai/engram/search"
)

var _ search.Adapter = (*Index)(nil)

// Index is a token-overlap inverted index over entry content and tags.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[entry.Ref]scope.Scope // token -> ref -> scope
	tokens   map[entry.Ref]int                    // ref -> distinct token count
}

// New creates an empty index.
func New() *Index {
	return &Index{
		postings: make(map[string]map[entry.Ref]scope.Scope),
		tokens:   make(map[entry.Ref]int),
	}
}

// Index adds or replaces an entry's postings.
func (ix *Index) Index(e *entry.Entry) {
	toks := tokenize(e.Content + " " + strings.Join(e.Tags, " "))
	ref := e.Ref()

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.remove(ref)
	for tok := range toks {
		m, ok := ix.postings[tok]
		if !ok {
			m = make(map[entry.Ref]scope.Scope)
			ix.postings[tok] = m
		}
		m[ref] = e.Scope
	}
	ix.tokens[ref] = len(toks)
}

// Remove deletes an entry's postings.
func (ix *Index) Remove(ref entry.Ref) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.remove(ref)
}

func (ix *Index) remove(ref entry.Ref) {
	for tok, m := range ix.postings {
		delete(m, ref)
		if len(m) == 0 {
			delete(ix.postings, tok)
		}
	}
	delete(ix.tokens, ref)
}

// Search implements search.Adapter. The score of a hit is the fraction of
// distinct query tokens present in the entry, so it falls in (0, 1].
func (ix *Index) Search(ctx context.Context, query string, chain scope.Chain, limit int) ([]search.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qtoks := tokenize(query)
	if len(qtoks) == 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matched := make(map[entry.Ref]int)
	for tok := range qtoks {
		for ref, sc := range ix.postings[tok] {
			if !chain.Contains(sc) {
				continue
			}
			matched[ref]++
		}
	}

	hits := make([]search.Hit, 0, len(matched))
	for ref, n := range matched {
		hits = append(hits, search.Hit{
			Ref:   ref,
			Score: float64(n) / float64(len(qtoks)),
		})
	}
	// Stable order: score descending, then identity.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Ref.Type != hits[j].Ref.Type {
			return hits[i].Ref.Type < hits[j].Ref.Type
		}
		return hits[i].Ref.ID < hits[j].Ref.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) map[string]struct{} {
	toks := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		toks[f] = struct{}{}
	}
	return toks
}
