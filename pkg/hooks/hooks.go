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

// Package hooks provides ordered, matchable handlers bound to runtime
// events. Handlers may short-circuit the operation that fired them:
// halting a tool, replacing a result, reprompting a swarm, or finishing
// an agent or the whole swarm early.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Event names a hook point.
type Event string

const (
	SwarmStart       Event = "swarm_start"
	SwarmStop        Event = "swarm_stop"
	PreToolUse       Event = "pre_tool_use"
	PostToolUse      Event = "post_tool_use"
	UserPrompt       Event = "user_prompt"
	AroundLLMRequest Event = "around_llm_request"
	AgentStop        Event = "agent_stop"
	FirstMessage     Event = "first_message"
	PreDelegation    Event = "pre_delegation"
	PostDelegation   Event = "post_delegation"
	ContextWarning   Event = "context_warning"
)

// Decision classifies a handler's verdict.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionSkip
	DecisionHalt
	DecisionReplace
	DecisionReprompt
	DecisionFinishAgent
	DecisionFinishSwarm
)

// Action is a handler's tagged return value. The executor chains handlers
// and the first non-continue action wins.
type Action struct {
	Decision Decision
	Message  string
	Value    interface{}
}

func Continue() Action                  { return Action{Decision: DecisionContinue} }
func Skip(message string) Action        { return Action{Decision: DecisionSkip, Message: message} }
func Halt(message string) Action        { return Action{Decision: DecisionHalt, Message: message} }
func Replace(value interface{}) Action  { return Action{Decision: DecisionReplace, Value: value} }
func Reprompt(text string) Action       { return Action{Decision: DecisionReprompt, Message: text} }
func FinishAgent(message string) Action { return Action{Decision: DecisionFinishAgent, Message: message} }
func FinishSwarm(message string) Action { return Action{Decision: DecisionFinishSwarm, Message: message} }

// ShortCircuits reports whether the action stops the handler chain.
func (a Action) ShortCircuits() bool {
	return a.Decision != DecisionContinue
}

// Context carries the state of the operation that fired the hook.
type Context struct {
	Event      Event
	Agent      string
	ToolName   string
	ToolArgs   map[string]interface{}
	ToolResult string
	Prompt     string
	Data       map[string]interface{}
}

// Handler processes a hook firing and returns a verdict.
type Handler func(ctx context.Context, hc *Context) (Action, error)

// Hook binds a handler to an event with an optional tool matcher and a
// priority. Higher priorities run first; ties run in registration order.
type Hook struct {
	Event    Event
	Matcher  string
	Priority int
	Handler  Handler
}

type compiledHook struct {
	Hook
	matcher *matcher
	seq     int
}

// Registry holds hooks and executes them in order.
type Registry struct {
	mu    sync.RWMutex
	hooks map[Event][]compiledHook
	seq   int
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[Event][]compiledHook)}
}

// Register compiles the hook's matcher and adds it. Reprompt is only
// meaningful from swarm_stop; the constraint is enforced at run time
// because the verdict is not known until the handler executes.
func (r *Registry) Register(h Hook) error {
	if h.Handler == nil {
		return fmt.Errorf("hook for %s has no handler", h.Event)
	}
	m, err := compileMatcher(h.Matcher)
	if err != nil {
		return fmt.Errorf("hook matcher %q: %w", h.Matcher, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ch := compiledHook{Hook: h, matcher: m, seq: r.seq}
	list := append(r.hooks[h.Event], ch)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
	r.hooks[h.Event] = list
	return nil
}

// Count returns the number of hooks registered for an event.
func (r *Registry) Count(event Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[event])
}

// Clear removes every registered hook. Intended for test isolation.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = make(map[Event][]compiledHook)
}

// Run executes the handlers bound to hc.Event in priority order. Tool
// events are filtered by matcher against hc.ToolName. The first
// short-circuiting action is returned; handler errors abort the chain.
func (r *Registry) Run(ctx context.Context, hc *Context) (Action, error) {
	r.mu.RLock()
	list := r.hooks[hc.Event]
	r.mu.RUnlock()

	for _, h := range list {
		if isToolEvent(hc.Event) && !h.matcher.matches(hc.ToolName) {
			continue
		}
		action, err := h.Handler(ctx, hc)
		if err != nil {
			return Continue(), fmt.Errorf("hook for %s failed: %w", hc.Event, err)
		}
		if action.Decision == DecisionReprompt && hc.Event != SwarmStop {
			return Continue(), fmt.Errorf("reprompt is only valid from swarm_stop, got it from %s", hc.Event)
		}
		if action.ShortCircuits() {
			return action, nil
		}
	}
	return Continue(), nil
}

func isToolEvent(e Event) bool {
	return e == PreToolUse || e == PostToolUse
}
