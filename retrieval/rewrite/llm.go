//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/engram-ai/engram/textgen"
)

var _ Rewriter = (*LLMRewriter)(nil)

const rewritePromptTemplate = `You rewrite search queries for a memory store that holds coding guidelines, project knowledge, tool descriptions, and past experiences.
Rewrite the query below so that it matches stored entries better: expand abbreviations, add the obvious synonyms, keep it one line.
Reply with the rewritten query only, no explanation.

Query: %s`

// LLMRewriter rewrites queries with a text-generation backend.
type LLMRewriter struct {
	generator textgen.Generator
}

// NewLLMRewriter creates a rewriter over the given generator.
func NewLLMRewriter(g textgen.Generator) *LLMRewriter {
	return &LLMRewriter{generator: g}
}

// Rewrite implements Rewriter. An empty or blank completion falls back to
// the original query.
func (r *LLMRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", nil
	}
	out, err := r.generator.Complete(ctx, fmt.Sprintf(rewritePromptTemplate, query))
	if err != nil {
		return "", fmt.Errorf("rewrite completion failed: %w", err)
	}
	rewritten := strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if rewritten == "" {
		return query, nil
	}
	// Keep single-line: some models add commentary after a newline.
	if i := strings.IndexByte(rewritten, '\n'); i >= 0 {
		rewritten = strings.TrimSpace(rewritten[:i])
	}
	return rewritten, nil
}
