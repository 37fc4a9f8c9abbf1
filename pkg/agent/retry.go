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
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/llm"
	"github.com/teradata-labs/weave/pkg/types"
)

// retryDelay is the fixed wait between retryable failures. The
// underlying transport may retry further on its own. Variable so tests
// can shorten it.
var retryDelay = 15 * time.Second

// retryBudget is the attempt count at this layer.
const retryBudget = 3

// callWithRetry drives one provider call to completion. The message
// preparation runs inside the loop so post-pruning ephemeral content is
// recomputed per attempt. The orphan-pruning retry after a tool-history
// 400 does not consume the budget.
func (a *Instance) callWithRetry(ctx context.Context) (*llm.Response, error) {
	pruned := false
	attempt := 0
	for {
		if _, herr := a.hooks.Run(ctx, &hooks.Context{
			Event: hooks.AroundLLMRequest,
			Agent: a.name,
			Data:  map[string]interface{}{"attempt": attempt + 1},
		}); herr != nil {
			a.logger.Warn("around_llm_request hook failed", zap.String("agent", a.name), zap.Error(herr))
		}
		req := a.buildRequest()
		a.stream.Emit(ctx, events.Event{
			Type:  events.LLMAPIRequest,
			Agent: a.name,
			Data: map[string]interface{}{
				"model":         req.Model,
				"message_count": len(req.Messages),
				"tool_count":    len(req.Tools),
				"streaming":     a.def.Streaming,
				"attempt":       attempt + 1,
			},
		})

		resp, err := a.invokeProvider(ctx, req)
		if err == nil {
			a.stream.Emit(ctx, events.Event{
				Type:  events.LLMAPIResponse,
				Agent: a.name,
				Data: map[string]interface{}{
					"streaming":     a.def.Streaming,
					"status":        200,
					"body":          responseBody(resp),
					"model":         resp.Model,
					"finish_reason": resp.StopReason,
					"usage": map[string]interface{}{
						"input_tokens":  resp.Usage.InputTokens,
						"output_tokens": resp.Usage.OutputTokens,
					},
				},
			})
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if llm.IsToolHistoryError(err) && !pruned {
			if a.pruneOrphanHistory(ctx) {
				// Free retry: the conversation is repaired and the
				// reminder is pending as ephemeral content.
				pruned = true
				continue
			}
			return nil, err
		}

		if llm.IsRetryable(err) && attempt < retryBudget-1 {
			attempt++
			a.logger.Warn("retryable LLM failure",
				zap.String("agent", a.name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}
		return nil, err
	}
}

// invokeProvider performs the call under the global LLM semaphore,
// streaming content chunks when the agent is configured for it.
func (a *Instance) invokeProvider(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := globalLLMSem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer globalLLMSem.Release(1)

	if !a.def.Streaming {
		return a.provider.Complete(ctx, req)
	}
	return a.provider.Stream(ctx, req, func(chunk llm.StreamChunk) {
		data := map[string]interface{}{"chunk_type": string(chunk.Type)}
		switch chunk.Type {
		case llm.ChunkContent:
			data["content"] = chunk.Text
		case llm.ChunkToolCall:
			if chunk.ToolCall != nil {
				data["tool_call_id"] = chunk.ToolCall.ID
				data["tool_name"] = chunk.ToolCall.Name
			}
		case llm.ChunkCitations:
			data["citation_count"] = len(chunk.Citations)
		}
		a.stream.Emit(ctx, events.Event{Type: events.ContentChunk, Agent: a.name, Data: data})
	})
}

// responseBody renders the body carried on llm_api_response. Streaming
// responses and stub providers have no raw body, so one is synthesized
// from the parsed fields; the log alone must suffice to rebuild the
// assistant message.
func responseBody(resp *llm.Response) string {
	if len(resp.Raw) > 0 {
		return string(resp.Raw)
	}
	synth, err := json.Marshal(map[string]interface{}{
		"content":    resp.Content,
		"thinking":   resp.Thinking,
		"tool_calls": resp.ToolCalls,
	})
	if err != nil {
		return ""
	}
	return string(synth)
}

// pruneOrphanHistory repairs the conversation after a tool-history 400
// and injects the ephemeral reminder. Reports whether anything was
// pruned.
func (a *Instance) pruneOrphanHistory(ctx context.Context) bool {
	a.mu.Lock()
	repaired, removed := a.cm.PruneOrphans(a.messages)
	if repaired != nil {
		a.messages = repaired
	}
	last := len(a.messages) - 1
	a.mu.Unlock()

	if len(removed) == 0 {
		return false
	}
	if last >= 0 {
		a.cm.AddEphemeral(last, OrphanReminder(removed))
	}
	details := make([]interface{}, len(removed))
	for i, d := range removed {
		details[i] = map[string]interface{}{"id": d.ID, "name": d.Name, "call": d.Call}
	}
	a.stream.Emit(ctx, events.Event{
		Type:  events.OrphanToolCallsPruned,
		Agent: a.name,
		Data: map[string]interface{}{
			"pruned_count": len(removed),
			"details":      details,
		},
	})
	return true
}

// buildRequest prepares the provider request from the live conversation,
// the pending ephemeral content, and the currently active toolset.
func (a *Instance) buildRequest() *llm.Request {
	a.mu.Lock()
	snapshot := make([]types.Message, len(a.messages))
	copy(snapshot, a.messages)
	a.mu.Unlock()

	active := a.registry.Active()
	tools := make([]llm.ToolDef, len(active))
	for i, t := range active {
		tools[i] = llm.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		}
	}
	req := &llm.Request{
		Model:       a.def.Model,
		System:      a.getSystemPrompt(),
		Messages:    a.cm.PrepareForLLM(snapshot),
		Tools:       tools,
		Temperature: a.def.Temperature,
		TopP:        a.def.TopP,
		Headers:     a.def.Headers,
		APIVersion:  a.def.APIVersion,
	}
	if a.def.Thinking != nil {
		req.Thinking = &llm.ThinkingConfig{
			Effort:       a.def.Thinking.Effort,
			BudgetTokens: a.def.Thinking.BudgetTokens,
		}
	}
	return req
}

// describeProviderError extracts taxonomy fields for events and surfaced
// messages.
func describeProviderError(err error) (typeName string, status int, retryable bool) {
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return pe.TypeName, pe.Status, pe.Retryable()
	}
	return "Error", 0, false
}
