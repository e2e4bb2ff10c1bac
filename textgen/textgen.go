//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package textgen defines the text-generation adapter used by the optional
// query-rewrite and rerank stages.
package textgen

import "context"

// Generator produces a completion for a prompt. Deadlines and cancellation
// are carried on the context; implementations must honor them.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Generator.
func (f GeneratorFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
