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
package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/teradata-labs/weave/pkg/shuttle"
)

// TodoItem is one entry in an agent's task list.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"` // pending, in_progress, completed
}

// TodoWriteTool maintains a per-agent-instance task list. State is
// instance-local: delegation instances do not share todos with their
// base agent.
type TodoWriteTool struct {
	mu    sync.Mutex
	items []TodoItem
}

func NewTodoWriteTool() *TodoWriteTool { return &TodoWriteTool{} }

func (t *TodoWriteTool) Name() string { return "TodoWrite" }

func (t *TodoWriteTool) Description() string {
	return "Replace the task list with an updated set of items. Each item has content and a status of pending, in_progress, or completed."
}

func (t *TodoWriteTool) InputSchema() *shuttle.JSONSchema {
	item := shuttle.NewObjectSchema("A task item", map[string]*shuttle.JSONSchema{
		"content": shuttle.NewStringSchema("Task description"),
		"status":  shuttle.NewStringSchema("Task status").WithEnum("pending", "in_progress", "completed"),
	}, []string{"content", "status"})
	return shuttle.NewObjectSchema("TodoWrite parameters", map[string]*shuttle.JSONSchema{
		"todos": shuttle.NewArraySchema("The full task list", item),
	}, []string{"todos"})
}

func (t *TodoWriteTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	raw, ok := params["todos"].([]interface{})
	if !ok {
		return shuttle.NewErrorResult("INVALID_TODOS", "todos must be an array of items"), nil
	}
	items := make([]TodoItem, 0, len(raw))
	for i, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return shuttle.NewErrorResult("INVALID_TODOS", fmt.Sprintf("todo %d is not an object", i)), nil
		}
		content, _ := m["content"].(string)
		status, _ := m["status"].(string)
		if content == "" {
			return shuttle.NewErrorResult("INVALID_TODOS", fmt.Sprintf("todo %d has no content", i)), nil
		}
		switch status {
		case "pending", "in_progress", "completed":
		default:
			return shuttle.NewErrorResult("INVALID_TODOS", fmt.Sprintf("todo %d has invalid status %q", i, status)), nil
		}
		items = append(items, TodoItem{Content: content, Status: status})
	}

	t.mu.Lock()
	t.items = items
	t.mu.Unlock()

	return shuttle.NewResult(fmt.Sprintf("Task list updated: %d item(s).", len(items))), nil
}

// Items returns a copy of the current task list.
func (t *TodoWriteTool) Items() []TodoItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TodoItem, len(t.items))
	copy(out, t.items)
	return out
}

// Render formats the task list for snapshots and transcripts.
func (t *TodoWriteTool) Render() string {
	items := t.Items()
	if len(items) == 0 {
		return "(empty)"
	}
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "- [%s] %s\n", item.Status, item.Content)
	}
	return b.String()
}
