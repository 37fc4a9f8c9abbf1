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

// Package workflow runs a DAG of swarm nodes. Each node is a mini-swarm
// executed when its dependencies complete; transform functions shape the
// text flowing between nodes and may redirect control with sentinels.
package workflow

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/agent"
	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/swarm"
)

// TransformContext is what input and output transforms see.
type TransformContext struct {
	// Content is the text being transformed: the assembled input for
	// input transforms, the node's raw output for output transforms.
	Content string

	// OriginalPrompt is the prompt the workflow was executed with.
	OriginalPrompt string

	// AllResults maps completed node names to their (transformed)
	// outputs.
	AllResults map[string]string

	// NodeName is the node the transform belongs to.
	NodeName string

	// Dependencies are the node's declared dependencies.
	Dependencies []string
}

// Transform reshapes content at a node boundary. Returning a sentinel
// error (Goto, Halt, Skip) redirects control instead of failing.
type Transform func(tc TransformContext) (string, error)

// Node is one step of the workflow: a swarm definition plus its wiring.
type Node struct {
	Name      string
	Agents    []*agent.Definition
	DependsOn []string

	// DefaultAgent names the node agent that receives the input.
	// Defaults to the first.
	DefaultAgent string

	// Input assembles the node's prompt. Without it the prompt is the
	// dependency outputs joined with the original prompt.
	Input Transform

	// Output reshapes the node's result before downstream nodes see it.
	Output Transform

	// PreserveContext keeps the node's swarm (agents, conversations,
	// delegates) alive across executions of this node within one run,
	// which matters when a goto loops back.
	PreserveContext bool

	// Hooks are registered on the node's swarm.
	Hooks []hooks.Hook

	// ExecutionTimeout bounds one execution of this node. Zero means the
	// swarm default.
	ExecutionTimeout time.Duration
}

// Workflow is a validated DAG of nodes.
type Workflow struct {
	name    string
	id      string
	nodes   map[string]*Node
	order   []string
	stream  *events.Stream
	logger  *zap.Logger
	factory swarm.ProviderFactory
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithStream sets the event stream shared with the node swarms.
func WithStream(s *events.Stream) Option {
	return func(w *Workflow) { w.stream = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Workflow) { w.logger = l }
}

// WithProviderFactory overrides the LLM client constructor for every
// node swarm.
func WithProviderFactory(f swarm.ProviderFactory) Option {
	return func(w *Workflow) { w.factory = f }
}

// New validates the node graph and returns an executable workflow.
// Dependency cycles, unknown dependencies, and duplicate node names fail
// here. Goto targets are checked at execution time because they are
// values produced by transforms.
func New(name string, nodes []*Node, opts ...Option) (*Workflow, error) {
	if name == "" {
		return nil, fmt.Errorf("workflow has no name")
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("workflow %s has no nodes", name)
	}
	w := &Workflow{
		name:   name,
		id:     name,
		nodes:  make(map[string]*Node, len(nodes)),
		stream: events.Default(),
		logger: zap.NewNop(),
	}
	for _, n := range nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("workflow %s has a node with no name", name)
		}
		if len(n.Agents) == 0 {
			return nil, fmt.Errorf("workflow %s: node %s has no agents", name, n.Name)
		}
		if _, dup := w.nodes[n.Name]; dup {
			return nil, fmt.Errorf("workflow %s declares node %q twice", name, n.Name)
		}
		w.nodes[n.Name] = n
	}
	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if _, ok := w.nodes[dep]; !ok {
				return nil, fmt.Errorf("workflow %s: node %s depends on unknown node %q", name, n.Name, dep)
			}
		}
	}
	order, err := topoSort(nodes)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", name, err)
	}
	w.order = order
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Name returns the workflow's name.
func (w *Workflow) Name() string { return w.name }

// Order returns the topological execution order.
func (w *Workflow) Order() []string {
	out := make([]string, len(w.order))
	copy(out, w.order)
	return out
}

// topoSort is Kahn's algorithm with deterministic tie-breaking by
// declaration order.
func topoSort(nodes []*Node) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		indegree[n.Name] = len(n.DependsOn)
		for _, dep := range n.DependsOn {
			dependents[dep] = append(dependents[dep], n.Name)
		}
	}

	var order []string
	ready := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if indegree[n.Name] == 0 {
			ready = append(ready, n.Name)
		}
	}
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(order) != len(nodes) {
		var stuck []string
		for name, d := range indegree {
			if d > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, fmt.Errorf("dependency cycle involving nodes %v", stuck)
	}
	return order, nil
}
