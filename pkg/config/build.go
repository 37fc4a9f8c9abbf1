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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/agent"
	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/mcp"
	"github.com/teradata-labs/weave/pkg/swarm"
	"github.com/teradata-labs/weave/pkg/workflow"
)

// Build converts the swarm config into a runnable swarm. MCP servers are
// connected here; the swarm closes them when its outermost execution
// finishes. Extra options are applied after the config-derived ones, so
// callers can override the stream, logger, or provider factory.
func (c *SwarmConfig) Build(ctx context.Context, opts ...swarm.Option) (*swarm.Swarm, error) {
	defs, err := c.definitions()
	if err != nil {
		return nil, err
	}

	var all []swarm.Option
	if c.Lead != "" {
		all = append(all, swarm.WithDefaultAgent(c.Lead))
	}
	if c.ExecutionTimeoutSeconds != 0 {
		all = append(all, swarm.WithExecutionTimeout(time.Duration(c.ExecutionTimeoutSeconds)*time.Second))
	}
	for _, hc := range c.Hooks {
		h, herr := hc.hook()
		if herr != nil {
			return nil, fmt.Errorf("swarm %s: %w", c.Name, herr)
		}
		all = append(all, swarm.WithHooks(h))
	}

	sources, err := connectServers(ctx, c.MCPServers)
	if err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		all = append(all, swarm.WithMCPSources(sources...))
	}
	all = append(all, opts...)

	s, err := swarm.New(c.Name, defs, all...)
	if err != nil {
		closeSources(sources)
		return nil, err
	}
	return s, nil
}

func (c *SwarmConfig) definitions() ([]*agent.Definition, error) {
	if len(c.Agents) == 0 {
		return nil, fmt.Errorf("%w: swarm %s declares no agents", ErrInvalidFile, c.Name)
	}
	defs := make([]*agent.Definition, 0, len(c.Agents))
	for _, ac := range c.Agents {
		def, err := ac.definition(c.AllAgents)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Build converts the workflow config into a runnable workflow. Node
// agent references are resolved against the shared agents list; each
// node gets its own definition copies so node swarms stay independent.
func (c *WorkflowConfig) Build(opts ...workflow.Option) (*workflow.Workflow, error) {
	if len(c.Agents) == 0 {
		return nil, fmt.Errorf("%w: workflow %s declares no agents", ErrInvalidFile, c.Name)
	}
	byName := make(map[string]*AgentConfig, len(c.Agents))
	for _, ac := range c.Agents {
		if _, dup := byName[ac.Name]; dup {
			return nil, fmt.Errorf("%w: workflow %s declares agent %q twice", ErrInvalidFile, c.Name, ac.Name)
		}
		byName[ac.Name] = ac
	}

	nodes := make([]*workflow.Node, 0, len(c.Nodes))
	for _, nc := range c.Nodes {
		node := &workflow.Node{
			Name:            nc.Name,
			DependsOn:       nc.DependsOn,
			DefaultAgent:    nc.DefaultAgent,
			PreserveContext: nc.PreserveContext,
			Input:           nc.Input,
			Output:          nc.Output,
		}
		if nc.ExecutionTimeoutSeconds != 0 {
			node.ExecutionTimeout = time.Duration(nc.ExecutionTimeoutSeconds) * time.Second
		}
		for _, name := range nc.Agents {
			ac, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("%w: workflow %s: node %s references unknown agent %q", ErrInvalidFile, c.Name, nc.Name, name)
			}
			def, err := ac.definition(c.AllAgents)
			if err != nil {
				return nil, err
			}
			node.Agents = append(node.Agents, def)
		}
		nodes = append(nodes, node)
	}

	w, err := workflow.New(c.Name, nodes, opts...)
	if err != nil {
		return nil, err
	}
	if c.StartNode != "" {
		if err := validateStartNode(c, w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// validateStartNode checks that start_node names a root of the DAG. The
// topological order already puts roots first; start_node is declarative
// documentation that must not contradict the graph.
func validateStartNode(c *WorkflowConfig, w *workflow.Workflow) error {
	for _, nc := range c.Nodes {
		if nc.Name != c.StartNode {
			continue
		}
		if len(nc.DependsOn) > 0 {
			return fmt.Errorf("%w: workflow %s: start_node %q has dependencies", ErrInvalidFile, c.Name, c.StartNode)
		}
		return nil
	}
	return fmt.Errorf("%w: workflow %s: start_node %q is not a declared node", ErrInvalidFile, c.Name, c.StartNode)
}

func connectServers(ctx context.Context, configs []mcp.ServerConfig) ([]*mcp.Source, error) {
	var sources []*mcp.Source
	for i := range configs {
		src, err := mcp.Connect(ctx, configs[i], events.Default(), zap.NewNop())
		if err != nil {
			closeSources(sources)
			return nil, fmt.Errorf("mcp server %s: %w", configs[i].Name, err)
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func closeSources(sources []*mcp.Source) {
	for _, s := range sources {
		_ = s.Close()
	}
}
