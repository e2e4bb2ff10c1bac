//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package entry defines the stored memory entry model shared by every
// retrieval source and store adapter.
package entry

import (
	"context"
	"fmt"
	"time"

	"github.com/engram-ai/engram/scope"
)

// Type classifies what kind of memory an entry holds.
type Type string

// Known entry types, in descending default ranking priority.
const (
	TypeGuideline  Type = "guideline"
	TypeKnowledge  Type = "knowledge"
	TypeTool       Type = "tool"
	TypeExperience Type = "experience"
)

// Types lists all known entry types in rank order.
var Types = []Type{TypeGuideline, TypeKnowledge, TypeTool, TypeExperience}

var typeRanks = map[Type]int{
	TypeGuideline:  0,
	TypeKnowledge:  1,
	TypeTool:       2,
	TypeExperience: 3,
}

// Valid reports whether t is a known entry type.
func (t Type) Valid() bool {
	_, ok := typeRanks[t]
	return ok
}

// Rank returns the tie-break rank of the type; lower ranks first.
// Unknown types rank last.
func (t Type) Rank() int {
	if r, ok := typeRanks[t]; ok {
		return r
	}
	return len(typeRanks)
}

// Ref is the logical identity of an entry: one entry per (Type, ID) pair
// across all retrieval sources.
type Ref struct {
	Type Type
	ID   string
}

// String returns a stable textual form, e.g. "guideline/g1".
func (r Ref) String() string {
	return fmt.Sprintf("%s/%s", r.Type, r.ID)
}

// Entry is a stored memory entry.
type Entry struct {
	ID       string         `json:"id"`
	Type     Type           `json:"type"`
	Content  string         `json:"content"`
	Category string         `json:"category,omitempty"`
	Priority int            `json:"priority,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Scope    scope.Scope    `json:"scope"`
	Version  int            `json:"version"`
	Active   bool           `json:"active"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the entry's logical identity.
func (e *Entry) Ref() Ref {
	return Ref{Type: e.Type, ID: e.ID}
}

// HasTag reports whether the entry carries the given tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Store loads entry content. Implementations are read-only from the
// pipeline's point of view.
type Store interface {
	// BatchGet loads the current version of the given entries of one type.
	// IDs with no backing entry are omitted from the result, not errors:
	// entries may be deleted between discovery and fetch.
	BatchGet(ctx context.Context, typ Type, ids []string) ([]*Entry, error)
}
