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
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/shuttle"
	"github.com/teradata-labs/weave/pkg/types"
)

// maxEventResultChars caps the result content carried on tool_result
// events so oversized outputs do not bloat the log or the durable sink.
const maxEventResultChars = 10000

// runToolCalls executes an assistant message's tool calls concurrently
// under the per-agent semaphore. Results are returned in the order of
// the originating tool_calls regardless of completion order.
func (a *Instance) runToolCalls(ctx context.Context, calls []types.ToolCall) ([]types.Message, error) {
	results := make([]types.Message, len(calls))
	errs := make([]error, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call types.ToolCall) {
			defer wg.Done()
			if err := a.toolSem.Acquire(ctx, 1); err != nil {
				errs[i] = err
				return
			}
			defer a.toolSem.Release(1)
			results[i], errs[i] = a.executeToolCall(ctx, call)
		}(i, call)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			var fse *FinishSwarmError
			var fae *FinishAgentError
			if errors.As(err, &fse) || errors.As(err, &fae) {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
	}
	return results, nil
}

// executeToolCall runs one call through the hook, validation, and
// permission layers, emitting tool_call and tool_result events.
func (a *Instance) executeToolCall(ctx context.Context, call types.ToolCall) (types.Message, error) {
	result := func(content string) types.Message {
		return types.Message{
			Role:       types.RoleTool,
			ToolCallID: call.ID,
			Content:    content,
			Timestamp:  time.Now(),
		}
	}

	action, herr := a.hooks.Run(ctx, &hooks.Context{
		Event:    hooks.PreToolUse,
		Agent:    a.name,
		ToolName: call.Name,
		ToolArgs: call.Arguments,
	})
	if herr != nil {
		a.logger.Warn("pre_tool_use hook failed", zap.String("agent", a.name), zap.Error(herr))
	}
	switch action.Decision {
	case hooks.DecisionHalt:
		return result("Tool execution halted: " + action.Message), nil
	case hooks.DecisionSkip:
		return result("Tool execution skipped: " + action.Message), nil
	case hooks.DecisionReplace:
		if s, ok := action.Value.(string); ok {
			return result(s), nil
		}
	case hooks.DecisionFinishAgent:
		return types.Message{}, &FinishAgentError{Message: action.Message}
	case hooks.DecisionFinishSwarm:
		return types.Message{}, &FinishSwarmError{Message: action.Message}
	}

	entry, ok := a.registry.Get(call.Name)
	if !ok {
		return result("Error: tool " + call.Name + " is not available"), nil
	}

	if err := shuttle.ValidateParams(entry.Tool, call.Arguments); err != nil {
		return result("Error: " + err.Error()), nil
	}
	if a.def.Permissions != nil {
		if err := a.def.Permissions.Check(call.Name, call.Arguments); err != nil {
			return result("Permission denied: " + err.Error()), nil
		}
	}

	a.stream.Emit(ctx, events.Event{
		Type:  events.ToolCallEvent,
		Agent: a.name,
		Data: map[string]interface{}{
			"tool_call_id": call.ID,
			"tool_name":    call.Name,
			"arguments":    call.Arguments,
		},
	})

	started := time.Now()
	res, err := entry.Tool.Execute(ctx, call.Arguments)
	elapsed := time.Since(started)
	if err != nil {
		if ctx.Err() != nil {
			return types.Message{}, ctx.Err()
		}
		res = shuttle.NewErrorResult("EXECUTION_FAILED", err.Error())
	}
	content := res.Text()

	action, herr = a.hooks.Run(ctx, &hooks.Context{
		Event:      hooks.PostToolUse,
		Agent:      a.name,
		ToolName:   call.Name,
		ToolArgs:   call.Arguments,
		ToolResult: content,
	})
	if herr != nil {
		a.logger.Warn("post_tool_use hook failed", zap.String("agent", a.name), zap.Error(herr))
	}
	switch action.Decision {
	case hooks.DecisionReplace:
		if s, ok := action.Value.(string); ok {
			content = s
		}
	case hooks.DecisionHalt:
		content = "Tool result suppressed: " + action.Message
	case hooks.DecisionFinishAgent:
		return types.Message{}, &FinishAgentError{Message: action.Message}
	case hooks.DecisionFinishSwarm:
		return types.Message{}, &FinishSwarmError{Message: action.Message}
	}

	eventContent := content
	if len(eventContent) > maxEventResultChars {
		eventContent = eventContent[:maxEventResultChars] + "... [truncated]"
	}
	data := map[string]interface{}{
		"tool_call_id": call.ID,
		"tool_name":    call.Name,
		"content":      eventContent,
		"success":      res.Success,
		"duration_ms":  elapsed.Milliseconds(),
	}
	// Read-style tools report what they read so event consumers can
	// rebuild read-tracking state.
	if res.Metadata != nil {
		meta := map[string]interface{}{}
		if v, ok := res.Metadata["read_digest"]; ok {
			meta["read_digest"] = v
		}
		if v, ok := res.Metadata["read_path"]; ok {
			meta["read_path"] = v
		}
		if len(meta) > 0 {
			data["metadata"] = meta
		}
	}
	a.stream.Emit(ctx, events.Event{Type: events.ToolResult, Agent: a.name, Data: data})

	a.mu.Lock()
	a.toolCalls++
	a.mu.Unlock()

	return result(content), nil
}
