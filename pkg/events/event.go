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

// Package events provides the execution event log: a process-wide stream
// with per-execution subscriber lists, identity propagation through
// context values, and microsecond timestamps so events emitted within the
// same second remain stably orderable.
package events

import (
	"encoding/json"
	"time"
)

// Type names an event in the execution log.
type Type string

const (
	SwarmStart Type = "swarm_start"
	SwarmStop  Type = "swarm_stop"

	AgentStart Type = "agent_start"
	AgentStop  Type = "agent_stop"
	AgentStep  Type = "agent_step"

	UserPrompt Type = "user_prompt"

	LLMAPIRequest    Type = "llm_api_request"
	LLMAPIResponse   Type = "llm_api_response"
	LLMRequestFailed Type = "llm_request_failed"
	ContentChunk     Type = "content_chunk"

	ToolCallEvent    Type = "tool_call"
	ToolResult       Type = "tool_result"
	DelegationResult Type = "delegation_result"

	ContextLimitWarning   Type = "context_limit_warning"
	ContextThresholdHit   Type = "context_threshold_hit"
	ContextCompression    Type = "context_compression"
	OrphanToolCallsPruned Type = "orphan_tool_calls_pruned"

	ExecutionTimeout Type = "execution_timeout"
	TurnTimeout      Type = "turn_timeout"

	MCPServerInitStart    Type = "mcp_server_init_start"
	MCPServerInitComplete Type = "mcp_server_init_complete"

	AgentLazyInitializationStart    Type = "agent_lazy_initialization_start"
	AgentLazyInitializationComplete Type = "agent_lazy_initialization_complete"
)

// TimestampLayout is ISO-8601 with microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Event is one record in the execution log. Identity fields and the
// timestamp are injected by the stream on emit when absent.
type Event struct {
	Type          Type                   `json:"type"`
	Agent         string                 `json:"agent,omitempty"`
	Timestamp     string                 `json:"timestamp"`
	ExecutionID   string                 `json:"execution_id,omitempty"`
	SwarmID       string                 `json:"swarm_id,omitempty"`
	ParentSwarmID string                 `json:"parent_swarm_id,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
}

// Time parses the event timestamp. Zero time on parse failure.
func (e *Event) Time() time.Time {
	t, err := time.Parse(TimestampLayout, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Get returns a data field, nil if absent.
func (e *Event) Get(key string) interface{} {
	if e.Data == nil {
		return nil
	}
	return e.Data[key]
}

// GetString returns a data field as a string, "" if absent or not a string.
func (e *Event) GetString(key string) string {
	s, _ := e.Get(key).(string)
	return s
}

// MarshalJSON flattens Data into the top-level object so consumers see
// type-specific fields alongside the identity fields.
func (e Event) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(e.Data)+6)
	for k, v := range e.Data {
		flat[k] = v
	}
	flat["type"] = e.Type
	flat["timestamp"] = e.Timestamp
	if e.Agent != "" {
		flat["agent"] = e.Agent
	}
	if e.ExecutionID != "" {
		flat["execution_id"] = e.ExecutionID
	}
	if e.SwarmID != "" {
		flat["swarm_id"] = e.SwarmID
	}
	if e.ParentSwarmID != "" {
		flat["parent_swarm_id"] = e.ParentSwarmID
	}
	return json.Marshal(flat)
}
