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

// Package types defines the conversation data model shared across the
// runtime: messages, tool calls, token usage, and citations.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a request by the model to invoke a tool.
// IDs are unique within a conversation.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// String renders the call as Name(key: "value", ...) with keys sorted so
// reminders and transcripts are stable.
func (tc ToolCall) String() string {
	if len(tc.Arguments) == 0 {
		return tc.Name + "()"
	}
	keys := make([]string, 0, len(tc.Arguments))
	for k := range tc.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %q", k, fmt.Sprintf("%v", tc.Arguments[k])))
	}
	return fmt.Sprintf("%s(%s)", tc.Name, strings.Join(parts, ", "))
}

// Citation references source material attached to an assistant message.
type Citation struct {
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	CitedText string `json:"cited_text,omitempty"`
}

// Message is one entry in an agent's conversation. Assistant messages
// carry zero or more ToolCalls; tool messages carry exactly one
// ToolCallID matching an earlier assistant call.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`

	// Per-call token counts as reported by the provider. InputTokens is
	// cumulative for the request that produced this message.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
	CachedTokens int `json:"cached_tokens,omitempty"`

	Thinking  string     `json:"thinking,omitempty"`
	Citations []Citation `json:"citations,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
}

// HasToolCalls reports whether the message requests any tool invocations.
func (m *Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Clone returns a shallow copy with its own ToolCalls slice.
func (m *Message) Clone() Message {
	out := *m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		copy(out.ToolCalls, m.ToolCalls)
	}
	return out
}

// Usage aggregates token counts and cost for one or more LLM calls.
type Usage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens,omitempty"`
	CacheReadTokens     int     `json:"cache_read_tokens,omitempty"`
	TotalTokens         int     `json:"total_tokens"`
	CostUSD             float64 `json:"cost_usd,omitempty"`
}

// Add accumulates another usage sample into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.TotalTokens += other.TotalTokens
	u.CostUSD += other.CostUSD
}
