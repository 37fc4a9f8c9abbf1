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
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/swarm"
)

// maxNodeExecutions bounds the total node runs in one execution so a
// goto loop cannot spin forever.
const maxNodeExecutions = 100

// Result is the outcome of one workflow execution.
type Result struct {
	Content       string            `json:"content"`
	Success       bool              `json:"success"`
	Error         string            `json:"error,omitempty"`
	Duration      time.Duration     `json:"duration"`
	NodeResults   map[string]string `json:"node_results"`
	NodesExecuted []string          `json:"nodes_executed"`
	TotalCostUSD  float64           `json:"total_cost_usd"`
	TotalTokens   int               `json:"total_tokens"`
	Logs          []events.Event    `json:"-"`
}

// Execute runs the DAG to completion. Node swarms join the workflow's
// execution id, so the whole run shares one event log.
func (w *Workflow) Execute(ctx context.Context, prompt string) (*Result, error) {
	execID := events.NewExecutionID(w.id)
	ctx = events.WithIdentity(ctx, events.Identity{ExecutionID: execID, SwarmID: w.id})

	collector := events.NewCollector()
	w.stream.Subscribe(execID, collector.Collect)
	defer w.stream.ClearExecution(execID)

	started := time.Now()
	w.stream.Emit(ctx, events.Event{
		Type: events.SwarmStart,
		Data: map[string]interface{}{
			"workflow": w.name,
			"nodes":    w.Order(),
			"prompt":   prompt,
		},
	})

	run := &execution{
		wf:      w,
		prompt:  prompt,
		results: make(map[string]string),
		bundles: make(map[string]*swarm.Swarm),
	}
	content, err := run.loop(ctx)
	r := &Result{
		Content:       content,
		Success:       err == nil,
		Duration:      time.Since(started),
		NodeResults:   run.results,
		NodesExecuted: run.executed,
	}
	if err != nil {
		r.Error = err.Error()
	}
	for _, e := range collector.Events() {
		if e.Type != events.SwarmStop {
			continue
		}
		if cost, ok := e.Get("total_cost_usd").(float64); ok {
			r.TotalCostUSD += cost
		}
		r.TotalTokens += intValue(e.Get("total_tokens"))
	}

	w.stream.Emit(ctx, events.Event{
		Type: events.SwarmStop,
		Data: map[string]interface{}{
			"workflow":       w.name,
			"result":         content,
			"success":        r.Success,
			"duration_ms":    r.Duration.Milliseconds(),
			"nodes_executed": run.executed,
		},
	})
	r.Logs = collector.Events()
	if err != nil {
		return r, err
	}
	return r, nil
}

// execution is the mutable state of one run.
type execution struct {
	wf       *Workflow
	prompt   string
	results  map[string]string
	executed []string
	bundles  map[string]*swarm.Swarm
	runs     int

	// redirect holds the content a goto carried; it becomes the target
	// node's input on re-entry so review feedback reaches the reworked
	// node.
	redirect    string
	hasRedirect bool
}

// loop walks the topological order, honoring goto redirects and halts.
func (e *execution) loop(ctx context.Context) (string, error) {
	final := ""
	i := 0
	for i < len(e.wf.order) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		name := e.wf.order[i]
		e.runs++
		if e.runs > maxNodeExecutions {
			return "", fmt.Errorf("workflow %s exceeded %d node executions; goto loop suspected", e.wf.name, maxNodeExecutions)
		}

		output, ctrl, err := e.runNode(ctx, e.wf.nodes[name])
		if err != nil {
			return "", err
		}
		e.results[name] = output
		e.executed = append(e.executed, name)
		final = output

		if ctrl != nil {
			if h, ok := asHalt(ctrl); ok {
				return h.content, nil
			}
			if g, ok := asGoto(ctrl); ok {
				idx := e.indexOf(g.target)
				if idx < 0 {
					return "", fmt.Errorf("workflow %s: goto to unknown node %q from %s", e.wf.name, g.target, name)
				}
				e.redirect = g.content
				e.hasRedirect = true
				i = idx
				continue
			}
		}
		i++
	}
	return final, nil
}

func (e *execution) indexOf(name string) int {
	for i, n := range e.wf.order {
		if n == name {
			return i
		}
	}
	return -1
}

// runNode assembles input, executes the node swarm, and applies the
// output transform. The returned control error, when non-nil, is a
// sentinel already separated from real failures.
func (e *execution) runNode(ctx context.Context, n *Node) (output string, ctrl error, err error) {
	input := e.defaultInput(n)
	if e.hasRedirect {
		input = e.redirect
		e.redirect = ""
		e.hasRedirect = false
	}
	if n.Input != nil {
		transformed, terr := n.Input(e.transformContext(n, input))
		if terr != nil {
			if s, ok := asSkip(terr); ok {
				return s.content, nil, nil
			}
			if h, ok := asHalt(terr); ok {
				return h.content, terr, nil
			}
			if _, ok := asGoto(terr); ok {
				return "", nil, fmt.Errorf("workflow %s: node %s input transform cannot goto; only output transforms redirect", e.wf.name, n.Name)
			}
			return "", nil, fmt.Errorf("workflow %s: node %s input transform: %w", e.wf.name, n.Name, terr)
		}
		input = transformed
	}

	s, err := e.nodeSwarm(n)
	if err != nil {
		return "", nil, err
	}
	res, err := s.Execute(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("workflow %s: node %s: %w", e.wf.name, n.Name, err)
	}
	if !res.Success {
		return "", nil, fmt.Errorf("workflow %s: node %s failed: %s", e.wf.name, n.Name, res.Error)
	}
	output = res.Content

	if n.Output != nil {
		transformed, terr := n.Output(e.transformContext(n, output))
		if terr != nil {
			if g, ok := asGoto(terr); ok {
				return g.content, terr, nil
			}
			if h, ok := asHalt(terr); ok {
				return h.content, terr, nil
			}
			if _, ok := asSkip(terr); ok {
				return "", nil, fmt.Errorf("workflow %s: node %s output transform cannot skip; the node already ran", e.wf.name, n.Name)
			}
			return "", nil, fmt.Errorf("workflow %s: node %s output transform: %w", e.wf.name, n.Name, terr)
		}
		output = transformed
	}
	return output, nil, nil
}

// defaultInput joins dependency outputs, falling back to the original
// prompt for root nodes.
func (e *execution) defaultInput(n *Node) string {
	if len(n.DependsOn) == 0 {
		return e.prompt
	}
	parts := make([]string, 0, len(n.DependsOn))
	for _, dep := range n.DependsOn {
		if out, ok := e.results[dep]; ok && out != "" {
			parts = append(parts, out)
		}
	}
	if len(parts) == 0 {
		return e.prompt
	}
	return strings.Join(parts, "\n\n")
}

func (e *execution) transformContext(n *Node, content string) TransformContext {
	all := make(map[string]string, len(e.results))
	for k, v := range e.results {
		all[k] = v
	}
	return TransformContext{
		Content:        content,
		OriginalPrompt: e.prompt,
		AllResults:     all,
		NodeName:       n.Name,
		Dependencies:   append([]string(nil), n.DependsOn...),
	}
}

// nodeSwarm builds (or reuses) the node's mini-swarm. Preserved nodes
// keep their swarm so a goto loop continues the same conversations.
func (e *execution) nodeSwarm(n *Node) (*swarm.Swarm, error) {
	if n.PreserveContext {
		if s, ok := e.bundles[n.Name]; ok {
			return s, nil
		}
	}
	opts := []swarm.Option{
		swarm.WithSwarmID(fmt.Sprintf("%s/node:%s", e.wf.id, n.Name)),
		swarm.WithStream(e.wf.stream),
		swarm.WithLogger(e.wf.logger.With(zap.String("node", n.Name))),
	}
	if e.wf.factory != nil {
		opts = append(opts, swarm.WithProviderFactory(e.wf.factory))
	}
	if n.DefaultAgent != "" {
		opts = append(opts, swarm.WithDefaultAgent(n.DefaultAgent))
	}
	if n.ExecutionTimeout > 0 {
		opts = append(opts, swarm.WithExecutionTimeout(n.ExecutionTimeout))
	}
	if len(n.Hooks) > 0 {
		opts = append(opts, swarm.WithHooks(n.Hooks...))
	}
	s, err := swarm.New(n.Name, n.Agents, opts...)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: node %s: %w", e.wf.name, n.Name, err)
	}
	if n.PreserveContext {
		e.bundles[n.Name] = s
	}
	return s, nil
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
