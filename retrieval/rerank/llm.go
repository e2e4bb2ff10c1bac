//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package rerank

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/engram-ai/engram/log"
	"github.com/engram-ai/engram/textgen"
)

var _ Reranker = (*LLMReranker)(nil)

// maxSnippetLen bounds how much entry content goes into the prompt.
const maxSnippetLen = 300

const rerankPromptTemplate = `Rank the numbered entries below by how relevant they are to the query, most relevant first.
Reply with the numbers only, comma separated, e.g. "3,1,2". Include every number exactly once.

Query: %s

Entries:
%s`

// LLMReranker reorders results with a pairwise-relevance prompt against a
// text-generation backend.
type LLMReranker struct {
	generator textgen.Generator
}

// NewLLMReranker creates a reranker over the given generator.
func NewLLMReranker(g textgen.Generator) *LLMReranker {
	return &LLMReranker{generator: g}
}

// Rerank implements Reranker. The output is always a permutation of the
// input: indices the model omitted keep their relative order at the tail,
// and an unparseable response keeps the input order.
func (r *LLMReranker) Rerank(ctx context.Context, query string, items []*Item) ([]*Item, error) {
	if len(items) < 2 {
		return items, nil
	}

	var b strings.Builder
	for i, it := range items {
		snippet := it.Entry.Content
		if len(snippet) > maxSnippetLen {
			cut := maxSnippetLen
			// Back up to a rune boundary so the prompt stays valid UTF-8.
			for cut > 0 && !utf8.RuneStart(snippet[cut]) {
				cut--
			}
			snippet = snippet[:cut]
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, it.Entry.Type, snippet)
	}

	out, err := r.generator.Complete(ctx, fmt.Sprintf(rerankPromptTemplate, query, b.String()))
	if err != nil {
		return nil, fmt.Errorf("rerank completion failed: %w", err)
	}

	order := parseRanking(out, len(items))
	if len(order) == 0 {
		log.Warnf("reranker returned no usable ranking, keeping original order")
		return items, nil
	}

	reordered := make([]*Item, 0, len(items))
	seen := make(map[int]bool, len(items))
	for _, idx := range order {
		reordered = append(reordered, items[idx])
		seen[idx] = true
	}
	for i, it := range items {
		if !seen[i] {
			reordered = append(reordered, it)
		}
	}
	return reordered, nil
}

// parseRanking extracts 0-based indices from a "3,1,2"-style response,
// dropping duplicates and out-of-range values.
func parseRanking(response string, n int) []int {
	fields := strings.FieldsFunc(response, func(r rune) bool {
		return r != '-' && (r < '0' || r > '9')
	})
	out := make([]int, 0, n)
	seen := make(map[int]bool, n)
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 || v > n || seen[v-1] {
			continue
		}
		out = append(out, v-1)
		seen[v-1] = true
	}
	return out
}
