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
package config

import (
	"context"
	"time"

	"github.com/teradata-labs/weave/pkg/mcp"
	"github.com/teradata-labs/weave/pkg/swarm"
	"github.com/teradata-labs/weave/pkg/workflow"
)

// SwarmBuilder is the programmatic counterpart of the YAML `swarm:`
// block. It accumulates the same configuration and builds through the
// same conversion path.
type SwarmBuilder struct {
	cfg  SwarmConfig
	opts []swarm.Option
}

// NewSwarmBuilder starts a swarm configuration.
func NewSwarmBuilder(name string) *SwarmBuilder {
	return &SwarmBuilder{cfg: SwarmConfig{Name: name}}
}

// WithLead names the default agent.
func (b *SwarmBuilder) WithLead(name string) *SwarmBuilder {
	b.cfg.Lead = name
	return b
}

// WithExecutionTimeout bounds one execute call.
func (b *SwarmBuilder) WithExecutionTimeout(d time.Duration) *SwarmBuilder {
	b.opts = append(b.opts, swarm.WithExecutionTimeout(d))
	return b
}

// WithAllAgents sets defaults merged into every agent.
func (b *SwarmBuilder) WithAllAgents(defaults AgentDefaults) *SwarmBuilder {
	b.cfg.AllAgents = &defaults
	return b
}

// WithAgent adds one agent entry.
func (b *SwarmBuilder) WithAgent(ac AgentConfig) *SwarmBuilder {
	b.cfg.Agents = append(b.cfg.Agents, &ac)
	return b
}

// WithShellHook registers a swarm-level shell hook.
func (b *SwarmBuilder) WithShellHook(hc HookConfig) *SwarmBuilder {
	b.cfg.Hooks = append(b.cfg.Hooks, &hc)
	return b
}

// WithMCPServer adds an MCP server connected at build time.
func (b *SwarmBuilder) WithMCPServer(sc mcp.ServerConfig) *SwarmBuilder {
	b.cfg.MCPServers = append(b.cfg.MCPServers, sc)
	return b
}

// WithOptions appends raw swarm options applied after the config-derived
// ones.
func (b *SwarmBuilder) WithOptions(opts ...swarm.Option) *SwarmBuilder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build validates and constructs the swarm.
func (b *SwarmBuilder) Build(ctx context.Context) (*swarm.Swarm, error) {
	return b.cfg.Build(ctx, b.opts...)
}

// WorkflowBuilder is the programmatic counterpart of the YAML
// `workflow:` block.
type WorkflowBuilder struct {
	cfg  WorkflowConfig
	opts []workflow.Option
}

// NewWorkflowBuilder starts a workflow configuration.
func NewWorkflowBuilder(name string) *WorkflowBuilder {
	return &WorkflowBuilder{cfg: WorkflowConfig{Name: name}}
}

// WithAgent declares an agent referenced by nodes.
func (b *WorkflowBuilder) WithAgent(ac AgentConfig) *WorkflowBuilder {
	b.cfg.Agents = append(b.cfg.Agents, &ac)
	return b
}

// WithAllAgents sets defaults merged into every agent.
func (b *WorkflowBuilder) WithAllAgents(defaults AgentDefaults) *WorkflowBuilder {
	b.cfg.AllAgents = &defaults
	return b
}

// WithNode adds one node.
func (b *WorkflowBuilder) WithNode(nc NodeConfig) *WorkflowBuilder {
	b.cfg.Nodes = append(b.cfg.Nodes, &nc)
	return b
}

// WithStartNode documents the entry node; it must be a DAG root.
func (b *WorkflowBuilder) WithStartNode(name string) *WorkflowBuilder {
	b.cfg.StartNode = name
	return b
}

// WithOptions appends raw workflow options.
func (b *WorkflowBuilder) WithOptions(opts ...workflow.Option) *WorkflowBuilder {
	b.opts = append(b.opts, opts...)
	return b
}

// Build validates and constructs the workflow.
func (b *WorkflowBuilder) Build() (*workflow.Workflow, error) {
	return b.cfg.Build(b.opts...)
}
