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
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/llm"
	"github.com/teradata-labs/weave/pkg/shuttle"
	"github.com/teradata-labs/weave/pkg/shuttle/builtin"
	"github.com/teradata-labs/weave/pkg/types"
)

const (
	// DefaultToolConcurrency bounds parallel tool executions per agent.
	DefaultToolConcurrency = 10

	// DefaultGlobalLLMConcurrency bounds concurrent LLM calls
	// process-wide.
	DefaultGlobalLLMConcurrency = 50
)

// globalLLMSem bounds total concurrent LLM calls across every agent in
// the process.
var globalLLMSem = semaphore.NewWeighted(DefaultGlobalLLMConcurrency)

// DelegateResolver resolves (and lazily creates) delegation instances.
// The swarm implements it; the delegation tools call through it. The
// context carries execution identity for lazy-initialization events.
type DelegateResolver interface {
	ResolveDelegate(ctx context.Context, target, delegator string) (*Instance, error)
}

// Instance is a runtime agent: a definition bound to a provider, a tool
// registry, a context manager, and an owned conversation. Its identity
// is either the base name or base@delegator (chains like c@b@a for
// nested delegation).
type Instance struct {
	name     string
	def      *Definition
	provider llm.Provider
	registry *shuttle.Registry
	cm       *ContextManager
	hooks    *hooks.Registry
	stream   *events.Stream
	logger   *zap.Logger
	resolver DelegateResolver
	todos    *builtin.TodoWriteTool

	// systemPrompt defaults to the definition's; restoration may
	// override it when historical prompts are preserved.
	systemPrompt string

	// serial is the per-instance semaphore serializing shared-mode
	// delegation entries.
	serial *semaphore.Weighted

	// toolSem bounds tool fan-out within one request cycle.
	toolSem *semaphore.Weighted

	mu              sync.Mutex
	messages        []types.Message
	firstPromptSeen bool
	usage           types.Usage
	llmRequests     int
	toolCalls       int
}

// Option configures an Instance.
type Option func(*Instance)

// WithInstanceName overrides the instance identity (delegation instances
// use base@delegator).
func WithInstanceName(name string) Option {
	return func(a *Instance) { a.name = name }
}

// WithStream sets the event stream. Defaults to the process stream.
func WithStream(s *events.Stream) Option {
	return func(a *Instance) { a.stream = s }
}

// WithHooks sets the hook registry shared with the swarm.
func WithHooks(r *hooks.Registry) Option {
	return func(a *Instance) { a.hooks = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Instance) { a.logger = l }
}

// WithResolver wires delegation tools to the swarm.
func WithResolver(r DelegateResolver) Option {
	return func(a *Instance) { a.resolver = r }
}

// WithToolConcurrency overrides the per-agent fan-out bound.
func WithToolConcurrency(n int64) Option {
	return func(a *Instance) { a.toolSem = semaphore.NewWeighted(n) }
}

// NewInstance builds an agent instance from a validated definition.
func NewInstance(def *Definition, provider llm.Provider, opts ...Option) (*Instance, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("agent %s has no provider", def.Name)
	}
	a := &Instance{
		name:         def.Name,
		def:          def,
		provider:     provider,
		registry:     shuttle.NewRegistry(),
		cm:           NewContextManager(def.contextWindow()),
		systemPrompt: def.SystemPrompt,
		serial:       semaphore.NewWeighted(1),
		toolSem:      semaphore.NewWeighted(DefaultToolConcurrency),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.stream == nil {
		a.stream = events.Default()
	}
	// A registry supplied by the swarm already carries the definition
	// hooks; a standalone instance owns its registry and registers them
	// itself.
	if a.hooks == nil {
		a.hooks = hooks.NewRegistry()
		for _, h := range def.Hooks {
			if err := a.hooks.Register(h); err != nil {
				return nil, fmt.Errorf("agent %s: %w", def.Name, err)
			}
		}
	}
	if err := a.registerBuiltins(); err != nil {
		return nil, err
	}
	if err := a.registerDelegations(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Instance) registerBuiltins() error {
	a.todos = builtin.NewTodoWriteTool()
	fixed := []shuttle.Tool{
		builtin.NewThinkTool(),
		builtin.NewClockTool(),
		a.todos,
		builtin.NewLoadSkillTool(a.registry, a.def.SkillsDir),
	}
	for _, t := range fixed {
		if err := a.registry.Register(t, shuttle.SourceBuiltin, false); err != nil {
			return fmt.Errorf("agent %s: %w", a.def.Name, err)
		}
	}
	return nil
}

func (a *Instance) registerDelegations() error {
	for _, del := range a.def.Delegations {
		tool := &DelegationTool{
			target:          del.Agent,
			toolName:        del.ToolName,
			delegator:       a,
			preserveContext: del.PreserveContext,
			resolver:        a.resolver,
		}
		if err := a.registry.Register(tool, shuttle.SourceDelegation, true); err != nil {
			return fmt.Errorf("agent %s: %w", a.def.Name, err)
		}
	}
	return nil
}

// Name returns the instance identity (base or base@delegator chain).
func (a *Instance) Name() string { return a.name }

// BaseName strips the delegator chain. Memory and plugin storage is
// keyed by base name so delegation instances share knowledge but not
// conversation.
func (a *Instance) BaseName() string {
	base, _, _ := strings.Cut(a.name, "@")
	return base
}

// Definition returns the agent's configuration.
func (a *Instance) Definition() *Definition { return a.def }

// Registry returns the agent's tool registry.
func (a *Instance) Registry() *shuttle.Registry { return a.registry }

// ContextManager returns the agent's context manager.
func (a *Instance) ContextManager() *ContextManager { return a.cm }

// Todos returns the agent's task-list tool.
func (a *Instance) Todos() *builtin.TodoWriteTool { return a.todos }

// Messages returns a copy of the conversation.
func (a *Instance) Messages() []types.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// Usage returns cumulative usage counters for this instance.
func (a *Instance) Usage() types.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// Stats returns request and tool-call counters.
func (a *Instance) Stats() (llmRequests, toolCalls int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.llmRequests, a.toolCalls
}

// ResetConversation clears the message list. The system prompt is
// configuration, not a message, so it survives.
func (a *Instance) ResetConversation() {
	a.mu.Lock()
	a.messages = nil
	a.firstPromptSeen = false
	a.mu.Unlock()
}

// PreloadMessages seeds the conversation, used by restoration and tests.
func (a *Instance) PreloadMessages(msgs []types.Message) {
	a.mu.Lock()
	a.messages = append([]types.Message(nil), msgs...)
	for i := range msgs {
		if msgs[i].Role == types.RoleUser {
			a.firstPromptSeen = true
			break
		}
	}
	a.mu.Unlock()
}

// getSystemPrompt assembles the effective system prompt with a datetime
// header so the model knows the current time.
func (a *Instance) getSystemPrompt() string {
	header := "Current date and time: " + time.Now().Format("Monday, January 2, 2006 15:04 MST")
	prompt := a.systemPrompt
	if a.def.CodingAgent && prompt == "" {
		prompt = "You are a capable coding agent. Use the available tools to inspect and modify the workspace."
	}
	if prompt == "" {
		return header
	}
	return header + "\n\n" + prompt
}
