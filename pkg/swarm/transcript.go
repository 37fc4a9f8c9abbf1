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
package swarm

import (
	"fmt"
	"strings"

	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/types"
)

// TranscriptOptions filter what Transcript renders.
type TranscriptOptions struct {
	// Agents restricts output to these instance names. Empty means all.
	Agents []string

	// IncludeToolResults renders RESULT lines after each TOOL line.
	IncludeToolResults bool

	// IncludeThinking renders the agent's reasoning text before its
	// reply.
	IncludeThinking bool

	// MaxResultLength truncates rendered tool results. Zero means no
	// limit.
	MaxResultLength int
}

// Transcript renders an execution's event log as a readable dialogue.
func Transcript(logs []events.Event, opts TranscriptOptions) string {
	allowed := map[string]bool{}
	for _, a := range opts.Agents {
		allowed[a] = true
	}
	include := func(agent string) bool {
		return len(allowed) == 0 || allowed[agent]
	}
	// Tool names by call id, for RESULT prefixes.
	toolNames := map[string]string{}

	var b strings.Builder
	for i := range logs {
		e := &logs[i]
		if e.Agent != "" && !include(e.Agent) {
			continue
		}
		switch e.Type {
		case events.UserPrompt:
			prefix := "USER"
			if e.GetString("source") == "delegation" {
				prefix = "DELEGATE"
			}
			fmt.Fprintf(&b, "%s: %s\n", prefix, e.GetString("prompt"))
		case events.AgentStep:
			if opts.IncludeThinking {
				if thinking := e.GetString("thinking"); thinking != "" {
					fmt.Fprintf(&b, "AGENT [%s] (thinking): %s\n", e.Agent, thinking)
				}
			}
			if content := e.GetString("content"); content != "" {
				fmt.Fprintf(&b, "AGENT [%s]: %s\n", e.Agent, content)
			}
		case events.ToolCallEvent:
			name := e.GetString("tool_name")
			toolNames[e.GetString("tool_call_id")] = name
			args, _ := e.Get("arguments").(map[string]interface{})
			call := types.ToolCall{Name: name, Arguments: args}
			fmt.Fprintf(&b, "TOOL [%s] → %s\n", e.Agent, call.String())
		case events.ToolResult:
			if !opts.IncludeToolResults {
				continue
			}
			name := toolNames[e.GetString("tool_call_id")]
			if name == "" {
				name = e.GetString("tool_name")
			}
			content := e.GetString("content")
			if opts.MaxResultLength > 0 && len(content) > opts.MaxResultLength {
				content = content[:opts.MaxResultLength] + "..."
			}
			fmt.Fprintf(&b, "RESULT [%s]: %s\n", name, content)
		case events.DelegationResult:
			content := e.GetString("content")
			if opts.MaxResultLength > 0 && len(content) > opts.MaxResultLength {
				content = content[:opts.MaxResultLength] + "..."
			}
			fmt.Fprintf(&b, "DELEGATE [%s → %s]: %s\n", e.Agent, e.GetString("target"), content)
		}
	}
	return b.String()
}

// Transcript renders this result's log with the given options.
func (r *Result) Transcript(opts TranscriptOptions) string {
	return Transcript(r.Logs, opts)
}
