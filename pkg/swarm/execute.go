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
package swarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/agent"
	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/hooks"
)

// maxReprompts caps the swarm_stop reprompt loop so a hook cannot spin
// the swarm forever.
const maxReprompts = 10

// Execute runs one prompt through the default agent to completion.
// When ctx already carries an execution identity the run joins it as a
// nested swarm; otherwise a fresh execution id is minted and its
// subscriber list is cleared on the way out.
func (s *Swarm) Execute(ctx context.Context, prompt string) (*Result, error) {
	parent := events.IdentityFrom(ctx)
	execID := parent.ExecutionID
	outermost := execID == ""
	if outermost {
		execID = events.NewExecutionID(s.id)
	}
	ctx = events.WithIdentity(ctx, events.Identity{
		ExecutionID:   execID,
		SwarmID:       s.id,
		ParentSwarmID: parent.SwarmID,
	})

	collector := events.NewCollector()
	s.stream.Subscribe(execID, collector.Collect)
	started := time.Now()

	defer func() {
		s.dropDelegates()
		if outermost {
			for _, src := range s.mcpSources {
				if err := src.Close(); err != nil {
					s.logger.Warn("mcp source close failed", zap.Error(err))
				}
			}
			s.stream.ClearExecution(execID)
		}
	}()

	s.stream.Emit(ctx, events.Event{
		Type: events.SwarmStart,
		Data: map[string]interface{}{
			"swarm_name": s.name,
			"agents":     s.AgentNames(),
			"prompt":     prompt,
		},
	})

	if action, err := s.hooks.Run(ctx, &hooks.Context{Event: hooks.SwarmStart, Prompt: prompt}); err != nil {
		s.logger.Warn("swarm_start hook failed", zap.Error(err))
	} else {
		switch action.Decision {
		case hooks.DecisionHalt:
			return s.finish(ctx, collector, started, "", s.defaultAgent,
				fmt.Errorf("swarm halted by hook: %s", action.Message)), nil
		case hooks.DecisionReplace:
			if p, ok := action.Value.(string); ok {
				prompt = p
			}
		}
	}

	inst, err := s.Agent(s.defaultAgent)
	if err != nil {
		return nil, err
	}

	tctx, cancel := context.WithTimeout(ctx, s.executionTimeout)
	defer cancel()

	content, runErr := s.run(tctx, inst, prompt)
	if runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) && tctx.Err() != nil && ctx.Err() == nil {
			s.stream.Emit(ctx, events.Event{
				Type: events.ExecutionTimeout,
				Data: map[string]interface{}{"timeout_seconds": s.executionTimeout.Seconds()},
			})
			r := s.finish(ctx, collector, started, "", inst.Name(),
				fmt.Errorf("execution timed out after %s", s.executionTimeout))
			r.Metadata["timeout"] = true
			return r, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, runErr
	}
	return s.finish(ctx, collector, started, content, inst.Name(), nil), nil
}

// run drives the Ask and the swarm_stop hook loop. A reprompt verdict
// sends the hook's text back to the same agent, up to maxReprompts.
func (s *Swarm) run(ctx context.Context, inst *agent.Instance, prompt string) (string, error) {
	reply, err := inst.Ask(ctx, prompt)
	content := ""
	var fse *agent.FinishSwarmError
	switch {
	case err == nil:
		content = reply.Content
	case errors.As(err, &fse):
		content = fse.Message
	default:
		return "", err
	}

	for i := 0; i < maxReprompts; i++ {
		action, herr := s.hooks.Run(ctx, &hooks.Context{
			Event: hooks.SwarmStop,
			Agent: inst.Name(),
			Data:  map[string]interface{}{"result": content},
		})
		if herr != nil {
			s.logger.Warn("swarm_stop hook failed", zap.Error(herr))
			break
		}
		if action.Decision != hooks.DecisionReprompt {
			break
		}
		reply, err = inst.Ask(ctx, action.Message)
		if err != nil {
			if errors.As(err, &fse) {
				content = fse.Message
				break
			}
			return "", err
		}
		content = reply.Content
	}
	return content, nil
}

// finish aggregates the event log into a Result and emits swarm_stop.
func (s *Swarm) finish(ctx context.Context, collector *events.Collector, started time.Time, content, agentName string, runErr error) *Result {
	logs := collector.Events()
	perAgent := aggregateUsage(logs)

	var totalCost float64
	var totalTokens, llmRequests, toolCalls int
	for _, u := range perAgent {
		totalCost += u.CostUSD
		totalTokens += u.InputTokens + u.OutputTokens
		llmRequests += u.Requests
	}
	agents := make([]string, 0, len(perAgent))
	seen := make(map[string]bool)
	for _, e := range logs {
		if e.Agent != "" && !seen[e.Agent] {
			seen[e.Agent] = true
			agents = append(agents, e.Agent)
		}
		if e.Type == events.ToolResult {
			toolCalls++
		}
	}

	r := &Result{
		Content:       content,
		Agent:         agentName,
		Success:       runErr == nil,
		Duration:      time.Since(started),
		TotalCostUSD:  totalCost,
		TotalTokens:   totalTokens,
		LLMRequests:   llmRequests,
		ToolCalls:     toolCalls,
		AgentsUsed:    agents,
		PerAgentUsage: perAgent,
		Logs:          logs,
		Metadata:      map[string]interface{}{},
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}

	s.stream.Emit(ctx, events.Event{
		Type: events.SwarmStop,
		Data: map[string]interface{}{
			"swarm_name":      s.name,
			"result":          content,
			"success":         r.Success,
			"duration_ms":     r.Duration.Milliseconds(),
			"total_cost_usd":  totalCost,
			"total_tokens":    totalTokens,
			"llm_requests":    llmRequests,
			"per_agent_usage": perAgentUsageData(perAgent),
		},
	})
	// The final event is part of the log too.
	r.Logs = collector.Events()
	return r
}

// Handle controls a background execution started with Start.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	result *Result
	err    error
}

// Start launches Execute in the background.
func (s *Swarm) Start(ctx context.Context, prompt string) *Handle {
	cctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.result, h.err = s.Execute(cctx, prompt)
	}()
	return h
}

// Stop cancels the execution. Wait reports the outcome.
func (h *Handle) Stop() {
	h.cancel()
}

// Wait blocks until the execution finishes. A cancelled run returns a
// nil result and no error.
func (h *Handle) Wait() (*Result, error) {
	<-h.done
	if h.err != nil && errors.Is(h.err, context.Canceled) {
		return nil, nil
	}
	return h.result, h.err
}
