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
package agent

import (
	"github.com/teradata-labs/weave/pkg/shuttle/builtin"
	"github.com/teradata-labs/weave/pkg/types"
)

// AgentSnapshot is the serializable per-agent state: the conversation,
// the context-manager state, and per-tool state.
type AgentSnapshot struct {
	Name         string             `json:"name"`
	SystemPrompt string             `json:"system_prompt,omitempty"`
	Messages     []types.Message    `json:"messages"`
	Context      ContextState       `json:"context"`
	Todos        []builtin.TodoItem `json:"todos,omitempty"`
	Usage        types.Usage        `json:"usage"`
}

// Snapshot captures the instance state.
func (a *Instance) Snapshot() AgentSnapshot {
	a.mu.Lock()
	msgs := make([]types.Message, len(a.messages))
	copy(msgs, a.messages)
	usage := a.usage
	a.mu.Unlock()

	return AgentSnapshot{
		Name:         a.name,
		SystemPrompt: a.systemPrompt,
		Messages:     msgs,
		Context:      a.cm.State(),
		Todos:        a.todos.Items(),
		Usage:        usage,
	}
}

// RestoreOptions control how a snapshot is applied.
type RestoreOptions struct {
	// PreserveHistoricalSystemPrompt keeps the snapshot's system prompt
	// instead of the current definition's.
	PreserveHistoricalSystemPrompt bool
}

// Restore reinstates a snapshot. Order matters: the conversation is
// cleared first, then the system prompt is installed, then the restored
// messages are appended.
func (a *Instance) Restore(snap AgentSnapshot, opts RestoreOptions) {
	a.ResetConversation()

	if opts.PreserveHistoricalSystemPrompt && snap.SystemPrompt != "" {
		a.systemPrompt = snap.SystemPrompt
	} else {
		a.systemPrompt = a.def.SystemPrompt
	}

	a.PreloadMessages(snap.Messages)
	a.cm.RestoreState(snap.Context)

	a.mu.Lock()
	a.usage = snap.Usage
	a.mu.Unlock()
}
