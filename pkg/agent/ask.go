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
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/types"
)

// maxRequestCycles caps the reason/tool-call/observe loop within one Ask.
const maxRequestCycles = 100

// SourceUser and SourceDelegation tag who issued a prompt.
const (
	SourceUser       = "user"
	SourceDelegation = "delegation"
)

// FinishSwarmError propagates a finish_swarm hook verdict up to the
// orchestrator. It is a control signal, not a failure.
type FinishSwarmError struct {
	Message string
}

func (e *FinishSwarmError) Error() string {
	return "swarm finished by hook: " + e.Message
}

// FinishAgentError ends the current turn early with the hook's message.
// Like FinishSwarmError it is a control signal: Ask converts it into the
// final assistant message instead of returning it.
type FinishAgentError struct {
	Message string
}

func (e *FinishAgentError) Error() string {
	return "agent finished by hook: " + e.Message
}

type askConfig struct {
	source string
	reset  bool
}

// AskOption configures one Ask call.
type AskOption func(*askConfig)

// WithSource tags the prompt's origin: "user" (default) or "delegation".
func WithSource(source string) AskOption {
	return func(c *askConfig) { c.source = source }
}

// WithReset clears the conversation before the prompt is appended.
func WithReset(reset bool) AskOption {
	return func(c *askConfig) { c.reset = reset }
}

// Ask runs one turn: prompt in, assistant message out. Non-retryable
// provider failures and turn timeouts surface as assistant-role messages
// rather than errors, so a delegating parent observes them naturally.
func (a *Instance) Ask(ctx context.Context, prompt string, opts ...AskOption) (*types.Message, error) {
	cfg := askConfig{source: SourceUser}
	for _, opt := range opts {
		opt(&cfg)
	}

	timeout := a.def.turnTimeout()
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := a.ask(tctx, prompt, cfg)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && tctx.Err() != nil && ctx.Err() == nil {
		a.stream.Emit(ctx, events.Event{
			Type:  events.TurnTimeout,
			Agent: a.name,
			Data:  map[string]interface{}{"timeout_seconds": timeout.Seconds()},
		})
		timeoutMsg := types.Message{
			Role:      types.RoleAssistant,
			Content:   fmt.Sprintf("The turn timed out after %s before completing.", timeout),
			Timestamp: time.Now(),
		}
		a.mu.Lock()
		a.messages = append(a.messages, timeoutMsg)
		a.mu.Unlock()
		return &timeoutMsg, nil
	}
	return msg, err
}

func (a *Instance) ask(ctx context.Context, prompt string, cfg askConfig) (_ *types.Message, err error) {
	// Ephemeral content must never leak into the next request,
	// regardless of how this one ends.
	defer a.cm.ClearEphemeral()

	a.stream.Emit(ctx, events.Event{Type: events.AgentStart, Agent: a.name})
	stopped := false
	emitStop := func() {
		if !stopped {
			stopped = true
			if _, herr := a.hooks.Run(ctx, &hooks.Context{Event: hooks.AgentStop, Agent: a.name}); herr != nil {
				a.logger.Warn("agent_stop hook failed", zap.String("agent", a.name), zap.Error(herr))
			}
			a.stream.Emit(ctx, events.Event{Type: events.AgentStop, Agent: a.name})
		}
	}
	defer emitStop()

	if cfg.reset {
		a.ResetConversation()
	}

	a.mu.Lock()
	first := !a.firstPromptSeen
	a.firstPromptSeen = true
	a.mu.Unlock()

	if first {
		if action, herr := a.hooks.Run(ctx, &hooks.Context{Event: hooks.FirstMessage, Agent: a.name, Prompt: prompt}); herr != nil {
			a.logger.Warn("first_message hook failed", zap.String("agent", a.name), zap.Error(herr))
		} else if action.Decision == hooks.DecisionReplace {
			if s, ok := action.Value.(string); ok {
				prompt = s
			}
		}
	}

	action, herr := a.hooks.Run(ctx, &hooks.Context{Event: hooks.UserPrompt, Agent: a.name, Prompt: prompt})
	if herr != nil {
		a.logger.Warn("user_prompt hook failed", zap.String("agent", a.name), zap.Error(herr))
	}
	switch action.Decision {
	case hooks.DecisionReplace:
		if s, ok := action.Value.(string); ok {
			prompt = s
		}
	case hooks.DecisionHalt, hooks.DecisionFinishAgent:
		halted := types.Message{Role: types.RoleAssistant, Content: action.Message, Timestamp: time.Now()}
		a.mu.Lock()
		a.messages = append(a.messages, halted)
		a.mu.Unlock()
		return &halted, nil
	case hooks.DecisionFinishSwarm:
		return nil, &FinishSwarmError{Message: action.Message}
	}

	a.mu.Lock()
	a.messages = append(a.messages, types.Message{
		Role:      types.RoleUser,
		Content:   prompt,
		Timestamp: time.Now(),
	})
	userIdx := len(a.messages) - 1
	a.mu.Unlock()

	if first {
		a.injectFirstMessageReminders(userIdx)
	}
	a.stream.Emit(ctx, events.Event{
		Type:  events.UserPrompt,
		Agent: a.name,
		Data:  map[string]interface{}{"prompt": prompt, "source": cfg.source},
	})

	for cycle := 0; cycle < maxRequestCycles; cycle++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		resp, callErr := a.callWithRetry(ctx)
		// Reminders are one request's worth of content; once the call
		// completes (either way) they must not carry into the next cycle.
		a.cm.ClearEphemeral()
		if callErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var fse *FinishSwarmError
			if errors.As(callErr, &fse) {
				return nil, callErr
			}
			failed := a.surfaceRequestFailure(ctx, callErr)
			a.stream.Emit(ctx, events.Event{
				Type:  events.AgentStep,
				Agent: a.name,
				Data:  map[string]interface{}{"content": failed.Content},
			})
			return failed, nil
		}

		assistant := types.Message{
			Role:         types.RoleAssistant,
			Content:      resp.Content,
			ToolCalls:    resp.ToolCalls,
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CachedTokens: resp.Usage.CacheReadTokens,
			Thinking:     resp.Thinking,
			Citations:    resp.Citations,
			Timestamp:    time.Now(),
		}
		a.mu.Lock()
		a.messages = append(a.messages, assistant)
		a.usage.Add(resp.Usage)
		a.llmRequests++
		snapshot := make([]types.Message, len(a.messages))
		copy(snapshot, a.messages)
		a.mu.Unlock()

		a.manageContext(ctx, snapshot)
		stepData := map[string]interface{}{
			"content":    assistant.Content,
			"tool_calls": len(assistant.ToolCalls),
		}
		if assistant.Thinking != "" {
			stepData["thinking"] = assistant.Thinking
		}
		a.stream.Emit(ctx, events.Event{
			Type:  events.AgentStep,
			Agent: a.name,
			Data:  stepData,
		})

		if !assistant.HasToolCalls() {
			emitStop()
			return &assistant, nil
		}

		toolResults, terr := a.runToolCalls(ctx, assistant.ToolCalls)
		if terr != nil {
			var fae *FinishAgentError
			if errors.As(terr, &fae) {
				finished := types.Message{Role: types.RoleAssistant, Content: fae.Message, Timestamp: time.Now()}
				a.mu.Lock()
				a.messages = append(a.messages, finished)
				a.mu.Unlock()
				return &finished, nil
			}
			return nil, terr
		}
		a.mu.Lock()
		a.messages = append(a.messages, toolResults...)
		a.mu.Unlock()
	}

	return nil, fmt.Errorf("agent %s exceeded %d request cycles in one turn", a.name, maxRequestCycles)
}

// surfaceRequestFailure converts a provider failure into an assistant
// message and emits llm_request_failed, letting a delegating parent
// observe the failure as a normal reply.
func (a *Instance) surfaceRequestFailure(ctx context.Context, callErr error) *types.Message {
	typeName, status, retryable := describeProviderError(callErr)
	a.stream.Emit(ctx, events.Event{
		Type:  events.LLMRequestFailed,
		Agent: a.name,
		Data: map[string]interface{}{
			"error_type": typeName,
			"retryable":  retryable,
			"error":      callErr.Error(),
		},
	})
	content := "LLM request failed: " + callErr.Error()
	if status == 0 {
		content = fmt.Sprintf("LLM request failed: %s: %s", typeName, callErr.Error())
	}
	failed := types.Message{Role: types.RoleAssistant, Content: content, Timestamp: time.Now()}
	a.mu.Lock()
	a.messages = append(a.messages, failed)
	a.mu.Unlock()
	return &failed
}

// manageContext runs threshold checks and the one-shot compression after
// each assistant message lands.
func (a *Instance) manageContext(ctx context.Context, msgs []types.Message) {
	pct := a.cm.UsagePercentage(msgs)
	for _, threshold := range a.cm.CheckThresholds(pct) {
		a.stream.Emit(ctx, events.Event{
			Type:  events.ContextThresholdHit,
			Agent: a.name,
			Data:  map[string]interface{}{"threshold": threshold, "usage_percentage": pct},
		})
		if threshold >= 80 {
			a.stream.Emit(ctx, events.Event{
				Type:  events.ContextLimitWarning,
				Agent: a.name,
				Data: map[string]interface{}{
					"threshold":        threshold,
					"usage_percentage": pct,
					"tokens_remaining": a.cm.TokensRemaining(msgs),
				},
			})
			if _, err := a.hooks.Run(ctx, &hooks.Context{
				Event: hooks.ContextWarning,
				Agent: a.name,
				Data:  map[string]interface{}{"threshold": threshold},
			}); err != nil {
				a.logger.Warn("context_warning hook failed", zap.String("agent", a.name), zap.Error(err))
			}
		}
	}

	compressed, details := a.cm.CompressToolResults(msgs, pct)
	if compressed == nil {
		return
	}
	a.mu.Lock()
	a.messages = compressed
	a.mu.Unlock()
	names := make([]string, 0, len(details))
	for _, d := range details {
		names = append(names, d.Name)
	}
	a.stream.Emit(ctx, events.Event{
		Type:  events.ContextCompression,
		Agent: a.name,
		Data: map[string]interface{}{
			"compressed_count": len(details),
			"tools":            strings.Join(names, ","),
			"usage_percentage": pct,
		},
	})
}

// injectFirstMessageReminders attaches the toolset reminder, and the
// empty-todo reminder when TodoWrite is active, to the first user
// message.
func (a *Instance) injectFirstMessageReminders(userIdx int) {
	active := a.registry.Active()
	names := make([]string, len(active))
	todoActive := false
	for i, t := range active {
		names[i] = t.Name()
		if t.Name() == "TodoWrite" {
			todoActive = true
		}
	}
	a.cm.AddEphemeral(userIdx, fmt.Sprintf(
		"<system-reminder>\nAvailable tools: %s\n</system-reminder>",
		strings.Join(names, ", ")))
	if todoActive {
		a.cm.AddEphemeral(userIdx,
			"<system-reminder>\nYour todo list is empty. Use TodoWrite to plan multi-step work.\n</system-reminder>")
	}
}
