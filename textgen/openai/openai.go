//
// Copyright (C) 2025 Engram Authors. All rights reserved.
//
// engram is licensed under the Apache License Version 2.0.
//

// Package openai provides an OpenAI-backed text generator.
package openai

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/engram-ai/engram/log"
	"github.com/engram-ai/engram/textgen"
)

var _ textgen.Generator = (*Generator)(nil)

const (
	// DefaultModel is the default chat model for rewrite/rerank prompts.
	DefaultModel = "gpt-4o-mini"
	// DefaultMaxTokens bounds completion length; rewrite and rerank
	// prompts only need short answers.
	DefaultMaxTokens = 256
)

// Generator implements textgen.Generator over the OpenAI chat API.
type Generator struct {
	client         openai.Client
	model          string
	maxTokens      int
	temperature    float64
	apiKey         string
	baseURL        string
	requestOptions []option.RequestOption
}

// Option represents a functional option for configuring the Generator.
type Option func(*Generator)

// WithModel sets the chat model to use.
func WithModel(model string) Option {
	return func(g *Generator) {
		g.model = model
	}
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		g.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature. Rerank prompts want 0.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// WithAPIKey sets the OpenAI API key.
// If not provided, the OPENAI_API_KEY environment variable is used.
func WithAPIKey(apiKey string) Option {
	return func(g *Generator) {
		g.apiKey = apiKey
	}
}

// WithBaseURL sets the base URL, for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) Option {
	return func(g *Generator) {
		g.baseURL = baseURL
	}
}

// WithRequestOptions sets additional client request options.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(g *Generator) {
		g.requestOptions = append(g.requestOptions, opts...)
	}
}

// New creates a new OpenAI text generator with the given options.
func New(opts ...Option) *Generator {
	g := &Generator{
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(g)
	}

	var clientOpts []option.RequestOption
	if g.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(g.apiKey))
	}
	if g.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(g.baseURL))
	}
	g.client = openai.NewClient(clientOpts...)
	return g
}

// Complete implements textgen.Generator.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	request := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(g.maxTokens)),
		Temperature:         openai.Float(g.temperature),
	}

	requestOpts := make([]option.RequestOption, len(g.requestOptions))
	copy(requestOpts, g.requestOptions)

	response, err := g.client.Chat.Completions.New(ctx, request, requestOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(response.Choices) == 0 {
		log.Warn("received empty completion response from OpenAI API")
		return "", nil
	}
	return response.Choices[0].Message.Content, nil
}
