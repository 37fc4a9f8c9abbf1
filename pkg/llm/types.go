// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm defines the provider interface the chat engine calls and
// the closed error taxonomy every adapter must translate into. All retry
// and recovery logic lives above this interface, never inside a client.
package llm

import (
	"context"
	"encoding/json"

	"github.com/teradata-labs/weave/pkg/shuttle"
	"github.com/teradata-labs/weave/pkg/types"
)

// ToolDef describes one tool presented to the model.
type ToolDef struct {
	Name        string
	Description string
	InputSchema *shuttle.JSONSchema
}

// ThinkingConfig enables extended reasoning where the model supports it.
type ThinkingConfig struct {
	Effort       string
	BudgetTokens int
}

// Request is a fully prepared provider call.
type Request struct {
	Model       string
	System      string
	Messages    []types.Message
	Tools       []ToolDef
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	Thinking    *ThinkingConfig
	Headers     map[string]string
	APIVersion  string
}

// Response is the consolidated result of a provider call. For streaming
// calls this is the fully assembled message after the last chunk.
type Response struct {
	Content      string
	ToolCalls    []types.ToolCall
	StopReason   string
	Usage        types.Usage
	Model        string
	Thinking     string
	Citations    []types.Citation
	Raw          json.RawMessage
}

// ChunkType classifies a streaming chunk.
type ChunkType string

const (
	ChunkContent   ChunkType = "content"
	ChunkToolCall  ChunkType = "tool_call"
	ChunkSeparator ChunkType = "separator"
	ChunkCitations ChunkType = "citations"
)

// StreamChunk is one typed unit of streamed output. Tool-call arguments
// arrive as string fragments in content chunks and must not be parsed
// from there; the consolidated ToolCall appears on the final tool_call
// chunk.
type StreamChunk struct {
	Type      ChunkType
	Text      string
	ToolCall  *types.ToolCall
	Citations []types.Citation
}

// StreamHandler receives chunks in order. It must not block.
type StreamHandler func(StreamChunk)

// Provider is the narrow adapter interface over an LLM HTTP client.
type Provider interface {
	// Complete performs a blocking call and returns the full response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream performs a streaming call, invoking handler per chunk, and
	// returns the assembled response.
	Stream(ctx context.Context, req *Request, handler StreamHandler) (*Response, error)

	// Name identifies the provider ("anthropic").
	Name() string

	// Model returns the default model id.
	Model() string
}
