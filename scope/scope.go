//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package scope models the global/org/project/session hierarchy and resolves
// a request into the ordered chain of scopes a query searches.
package scope

import (
	"errors"
	"fmt"
)

// Type identifies a level in the scope hierarchy.
type Type string

// Scope hierarchy levels, most general first.
const (
	TypeGlobal  Type = "global"
	TypeOrg     Type = "org"
	TypeProject Type = "project"
	TypeSession Type = "session"
)

// ErrInvalidScope is returned when a scope request cannot be resolved.
var ErrInvalidScope = errors.New("invalid scope")

// Valid reports whether t is a known scope type.
func (t Type) Valid() bool {
	switch t {
	case TypeGlobal, TypeOrg, TypeProject, TypeSession:
		return true
	}
	return false
}

// Scope is one concrete level in a chain. The global scope has an empty ID;
// every other type requires one.
type Scope struct {
	Type Type
	ID   string
}

// Global is the root scope shared by every chain.
var Global = Scope{Type: TypeGlobal}

// String returns a stable textual form, e.g. "project:p1" or "global".
func (s Scope) String() string {
	if s.Type == TypeGlobal {
		return string(TypeGlobal)
	}
	return fmt.Sprintf("%s:%s", s.Type, s.ID)
}

// Chain is an ordered list of scopes, most specific first.
// It is built once per query and never mutated afterwards.
type Chain []Scope

// Contains reports whether the chain includes the given scope.
func (c Chain) Contains(s Scope) bool {
	for _, sc := range c {
		if sc == s {
			return true
		}
	}
	return false
}

// Request describes the scope a caller wants to search. Ancestor IDs are
// supplied by the caller so that resolution stays a pure function; levels
// whose ID is unknown are skipped when inheriting.
type Request struct {
	Type    Type
	ID      string
	Inherit bool

	// ProjectID and OrgID name the known ancestors of a session or project
	// scope. They are ignored for levels at or above the requested type.
	ProjectID string
	OrgID     string
}

// Resolve expands a scope request into the chain of scopes to search.
// With Inherit false the chain holds exactly the requested scope. With
// Inherit true it runs from the requested scope up to global, skipping
// ancestor levels with no known ID.
func Resolve(req Request) (Chain, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown scope type %q", ErrInvalidScope, req.Type)
	}
	if req.Type == TypeGlobal {
		if req.ID != "" {
			return nil, fmt.Errorf("%w: global scope takes no id", ErrInvalidScope)
		}
	} else if req.ID == "" {
		return nil, fmt.Errorf("%w: scope type %q requires an id", ErrInvalidScope, req.Type)
	}

	if !req.Inherit {
		return Chain{{Type: req.Type, ID: req.ID}}, nil
	}

	var chain Chain
	switch req.Type {
	case TypeSession:
		chain = append(chain, Scope{Type: TypeSession, ID: req.ID})
		if req.ProjectID != "" {
			chain = append(chain, Scope{Type: TypeProject, ID: req.ProjectID})
		}
		if req.OrgID != "" {
			chain = append(chain, Scope{Type: TypeOrg, ID: req.OrgID})
		}
	case TypeProject:
		chain = append(chain, Scope{Type: TypeProject, ID: req.ID})
		if req.OrgID != "" {
			chain = append(chain, Scope{Type: TypeOrg, ID: req.OrgID})
		}
	case TypeOrg:
		chain = append(chain, Scope{Type: TypeOrg, ID: req.ID})
	}
	chain = append(chain, Global)
	return chain, nil
}
