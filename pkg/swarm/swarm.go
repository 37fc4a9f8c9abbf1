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

// Package swarm orchestrates a set of agents with delegation: one default
// agent receives the prompt, and delegation tools route work to the
// others. The swarm owns instance lifecycles, identity propagation, the
// execution timeout, and result aggregation from the event log.
package swarm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/agent"
	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/llm"
	"github.com/teradata-labs/weave/pkg/llm/anthropic"
	"github.com/teradata-labs/weave/pkg/mcp"
	"github.com/teradata-labs/weave/pkg/shuttle"
)

// DefaultExecutionTimeout bounds one Execute call end to end.
const DefaultExecutionTimeout = 1800 * time.Second

// ProviderFactory builds the LLM client for an agent definition. The
// default constructs an Anthropic client from the definition and the
// environment.
type ProviderFactory func(def *agent.Definition) (llm.Provider, error)

var idSanitizer = regexp.MustCompile(`[^a-z0-9/_:-]+`)

// Swarm is a named set of agent definitions sharing one hook registry,
// one event stream, and one execution lifecycle. Primary instances and
// isolated delegation instances are created lazily on first use.
type Swarm struct {
	name             string
	id               string
	parentSwarmID    string
	defs             map[string]*agent.Definition
	order            []string
	defaultAgent     string
	factory          ProviderFactory
	hooks            *hooks.Registry
	stream           *events.Stream
	logger           *zap.Logger
	executionTimeout time.Duration
	mcpSources       []*mcp.Source
	pendingHooks     []hooks.Hook

	mu        sync.Mutex
	instances map[string]*agent.Instance
	providers map[string]llm.Provider
}

// Option configures a Swarm.
type Option func(*Swarm)

// WithDefaultAgent names the agent that receives the prompt. Defaults to
// the first declared agent.
func WithDefaultAgent(name string) Option {
	return func(s *Swarm) { s.defaultAgent = name }
}

// WithProviderFactory replaces the LLM client constructor, primarily for
// tests and alternative backends.
func WithProviderFactory(f ProviderFactory) Option {
	return func(s *Swarm) { s.factory = f }
}

// WithHooks registers swarm-level hooks.
func WithHooks(hs ...hooks.Hook) Option {
	return func(s *Swarm) {
		for _, h := range hs {
			s.pendingHooks = append(s.pendingHooks, h)
		}
	}
}

// WithStream sets the event stream. Defaults to the process stream.
func WithStream(stream *events.Stream) Option {
	return func(s *Swarm) { s.stream = stream }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Swarm) { s.logger = l }
}

// WithExecutionTimeout bounds Execute. Zero or negative values are
// rejected by New.
func WithExecutionTimeout(d time.Duration) Option {
	return func(s *Swarm) { s.executionTimeout = d }
}

// WithSwarmID overrides the derived id. Workflows use hierarchical node
// ids like "pipeline/node:review".
func WithSwarmID(id string) Option {
	return func(s *Swarm) { s.id = id }
}

// WithMCPSources attaches connected MCP servers whose tools are
// registered on every agent instance and closed at cleanup.
func WithMCPSources(sources ...*mcp.Source) Option {
	return func(s *Swarm) { s.mcpSources = append(s.mcpSources, sources...) }
}

// New builds a swarm from agent definitions. The delegation topology is
// validated eagerly: unknown targets, self-delegation, and delegation
// cycles fail here rather than mid-run.
func New(name string, defs []*agent.Definition, opts ...Option) (*Swarm, error) {
	if name == "" {
		return nil, fmt.Errorf("swarm has no name")
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("swarm %s has no agents", name)
	}
	s := &Swarm{
		name:             name,
		id:               deriveSwarmID(name),
		defs:             make(map[string]*agent.Definition, len(defs)),
		factory:          defaultProviderFactory,
		stream:           events.Default(),
		logger:           zap.NewNop(),
		executionTimeout: DefaultExecutionTimeout,
		instances:        make(map[string]*agent.Instance),
		providers:        make(map[string]llm.Provider),
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("swarm %s: %w", name, err)
		}
		if _, dup := s.defs[def.Name]; dup {
			return nil, fmt.Errorf("swarm %s declares agent %q twice", name, def.Name)
		}
		s.defs[def.Name] = def
		s.order = append(s.order, def.Name)
	}
	s.defaultAgent = s.order[0]
	for _, opt := range opts {
		opt(s)
	}
	if s.executionTimeout <= 0 {
		return nil, fmt.Errorf("swarm %s: execution timeout must be positive, got %s", name, s.executionTimeout)
	}
	if _, ok := s.defs[s.defaultAgent]; !ok {
		return nil, fmt.Errorf("swarm %s: default agent %q is not declared", name, s.defaultAgent)
	}
	if err := s.validateTopology(); err != nil {
		return nil, err
	}
	if s.hooks == nil {
		s.hooks = hooks.NewRegistry()
	}
	for _, h := range s.pendingHooks {
		if err := s.hooks.Register(h); err != nil {
			return nil, fmt.Errorf("swarm %s: %w", name, err)
		}
	}
	s.pendingHooks = nil
	// Definition hooks register here, once per definition; instances share
	// the registry and must not re-register them.
	for _, agentName := range s.order {
		for _, h := range s.defs[agentName].Hooks {
			if err := s.hooks.Register(h); err != nil {
				return nil, fmt.Errorf("swarm %s: agent %s: %w", name, agentName, err)
			}
		}
	}
	return s, nil
}

// Name returns the swarm's display name.
func (s *Swarm) Name() string { return s.name }

// ID returns the swarm identity carried on every event.
func (s *Swarm) ID() string { return s.id }

// Hooks returns the shared hook registry.
func (s *Swarm) Hooks() *hooks.Registry { return s.hooks }

// Stream returns the event stream.
func (s *Swarm) Stream() *events.Stream { return s.stream }

// AgentNames returns the declared agents in order.
func (s *Swarm) AgentNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// validateTopology checks the delegation graph. Every target must be a
// declared agent, and no agent may reach its own name through any
// delegation chain. Cycles are configuration errors whether the agents
// involved are shared or isolated.
func (s *Swarm) validateTopology() error {
	for name, def := range s.defs {
		for _, del := range def.Delegations {
			if _, ok := s.defs[del.Agent]; !ok {
				return fmt.Errorf("swarm %s: agent %s delegates to unknown agent %q", s.name, name, del.Agent)
			}
			if del.Agent == name {
				return fmt.Errorf("swarm %s: agent %s cannot delegate to itself", s.name, name)
			}
		}
	}
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int)
	var visit func(name string) error
	visit = func(name string) error {
		color[name] = grey
		for _, del := range s.defs[name].Delegations {
			switch color[del.Agent] {
			case grey:
				return fmt.Errorf("swarm %s: delegation cycle through agent %s", s.name, del.Agent)
			case white:
				if err := visit(del.Agent); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}
	for _, name := range s.order {
		if color[name] == white {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Agent returns the primary instance for a declared agent, creating it on
// first use.
func (s *Swarm) Agent(name string) (*agent.Instance, error) {
	def, ok := s.defs[name]
	if !ok {
		return nil, fmt.Errorf("swarm %s has no agent named %s", s.name, name)
	}
	return s.instance(context.Background(), name, def)
}

// ResolveDelegate implements agent.DelegateResolver. Shared targets map
// to the single primary instance; isolated targets get a per-delegator
// instance named target@delegator, created lazily.
func (s *Swarm) ResolveDelegate(ctx context.Context, target, delegator string) (*agent.Instance, error) {
	def, ok := s.defs[target]
	if !ok {
		return nil, fmt.Errorf("swarm %s has no agent named %s", s.name, target)
	}
	if def.SharedAcrossDelegations {
		return s.instance(ctx, target, def)
	}
	return s.instance(ctx, agent.DelegateInstanceName(target, delegator), def)
}

func (s *Swarm) instance(ctx context.Context, key string, def *agent.Definition) (*agent.Instance, error) {
	s.mu.Lock()
	if inst, ok := s.instances[key]; ok {
		s.mu.Unlock()
		return inst, nil
	}
	s.mu.Unlock()

	lazy := strings.Contains(key, "@")
	if lazy {
		s.stream.Emit(ctx, events.Event{
			Type:  events.AgentLazyInitializationStart,
			Agent: key,
			Data:  map[string]interface{}{"base_agent": def.Name},
		})
	}
	provider, err := s.providerFor(def)
	if err != nil {
		return nil, err
	}
	inst, err := agent.NewInstance(def, provider,
		agent.WithInstanceName(key),
		agent.WithStream(s.stream),
		agent.WithHooks(s.hooks),
		agent.WithLogger(s.logger),
		agent.WithResolver(s),
	)
	if err != nil {
		return nil, err
	}
	if err := s.registerMCPTools(inst); err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Another goroutine may have won the race; keep the first.
	if existing, ok := s.instances[key]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.instances[key] = inst
	s.mu.Unlock()

	if lazy {
		s.stream.Emit(ctx, events.Event{
			Type:  events.AgentLazyInitializationComplete,
			Agent: key,
			Data:  map[string]interface{}{"base_agent": def.Name},
		})
	}
	return inst, nil
}

func (s *Swarm) providerFor(def *agent.Definition) (llm.Provider, error) {
	s.mu.Lock()
	if p, ok := s.providers[def.Name]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	p, err := s.factory(def)
	if err != nil {
		return nil, fmt.Errorf("swarm %s: provider for agent %s: %w", s.name, def.Name, err)
	}
	s.mu.Lock()
	s.providers[def.Name] = p
	s.mu.Unlock()
	return p, nil
}

func (s *Swarm) registerMCPTools(inst *agent.Instance) error {
	for _, src := range s.mcpSources {
		for _, tool := range src.Tools() {
			if err := inst.Registry().Register(tool, shuttle.SourceMCP, true); err != nil {
				return fmt.Errorf("agent %s: mcp tool %s: %w", inst.Name(), tool.Name(), err)
			}
		}
	}
	return nil
}

// dropDelegates discards isolated delegation instances after an
// execution; their conversations are scoped to one run.
func (s *Swarm) dropDelegates() {
	s.mu.Lock()
	for key := range s.instances {
		if strings.Contains(key, "@") {
			delete(s.instances, key)
		}
	}
	s.mu.Unlock()
}

func defaultProviderFactory(def *agent.Definition) (llm.Provider, error) {
	cfg := anthropic.Config{
		Model:      def.Model,
		BaseURL:    def.BaseURL,
		APIVersion: def.APIVersion,
		Headers:    def.Headers,
	}
	if def.RequestTimeout != nil {
		cfg.Timeout = *def.RequestTimeout
	}
	return anthropic.NewClient(cfg, nil)
}

// deriveSwarmID normalizes a display name into an identifier.
func deriveSwarmID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "-")
	id = idSanitizer.ReplaceAllString(id, "")
	if id == "" {
		id = "swarm"
	}
	return id
}
