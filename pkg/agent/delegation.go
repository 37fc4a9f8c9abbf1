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
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/shuttle"
)

// DelegationTool invokes another agent's Ask. In isolated mode (the
// default) the resolver creates a per-delegator instance named
// target@delegator; in shared mode every delegator talks to the same
// instance, serialized by that instance's semaphore.
type DelegationTool struct {
	target          string
	toolName        string
	delegator       *Instance
	preserveContext bool
	resolver        DelegateResolver
}

// DelegationToolName derives the conventional WorkWith<Target> name.
func DelegationToolName(target string) string {
	runes := []rune(target)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return "WorkWith" + string(runes)
}

func (t *DelegationTool) Name() string {
	if t.toolName != "" {
		return t.toolName
	}
	return DelegationToolName(t.target)
}

func (t *DelegationTool) Description() string {
	return fmt.Sprintf("Delegate a task to the %s agent and receive its reply. Pass reset_context to start the delegate from a clean conversation.", t.target)
}

func (t *DelegationTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Delegation parameters", map[string]*shuttle.JSONSchema{
		"message":       shuttle.NewStringSchema("The task or question for the delegate"),
		"reset_context": shuttle.NewBooleanSchema("Clear the delegate's conversation before this message"),
	}, []string{"message"})
}

func (t *DelegationTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	message, _ := params["message"].(string)
	if message == "" {
		return shuttle.NewErrorResult("MISSING_MESSAGE", "delegation requires a message"), nil
	}

	// The static preserve_context setting is the per-call default; the
	// call-site reset_context argument overrides it either way.
	reset := !t.preserveContext
	if v, ok := params["reset_context"].(bool); ok {
		reset = v
	}

	if t.resolver == nil {
		return shuttle.NewErrorResult("NO_RESOLVER", "delegation is not wired to a swarm"), nil
	}
	delegate, err := t.resolver.ResolveDelegate(ctx, t.target, t.delegator.Name())
	if err != nil {
		return shuttle.NewErrorResult("DELEGATE_UNAVAILABLE", err.Error()), nil
	}

	hctx := &hooks.Context{
		Event: hooks.PreDelegation,
		Agent: t.delegator.Name(),
		Data: map[string]interface{}{
			"target":  delegate.Name(),
			"message": message,
		},
	}
	if action, herr := t.delegator.hooks.Run(ctx, hctx); herr != nil {
		t.delegator.logger.Warn("pre_delegation hook failed", zap.Error(herr))
	} else if action.Decision == hooks.DecisionHalt {
		return shuttle.NewErrorResult("DELEGATION_HALTED", action.Message), nil
	} else if action.Decision == hooks.DecisionReplace {
		if s, ok := action.Value.(string); ok {
			message = s
		}
	}

	// Shared instances serialize concurrent delegations so the
	// delegate's conversation mutations stay well-ordered.
	shared := delegate.Name() == t.target
	if shared {
		if err := delegate.serial.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer delegate.serial.Release(1)
	}

	started := time.Now()
	reply, err := delegate.Ask(ctx, message, WithSource(SourceDelegation), WithReset(reset))
	if err != nil {
		return nil, err
	}
	content := reply.Content

	if action, herr := t.delegator.hooks.Run(ctx, &hooks.Context{
		Event:      hooks.PostDelegation,
		Agent:      t.delegator.Name(),
		ToolResult: content,
		Data:       map[string]interface{}{"target": delegate.Name()},
	}); herr != nil {
		t.delegator.logger.Warn("post_delegation hook failed", zap.Error(herr))
	} else if action.Decision == hooks.DecisionReplace {
		if s, ok := action.Value.(string); ok {
			content = s
		}
	}

	t.delegator.stream.Emit(ctx, events.Event{
		Type:  events.DelegationResult,
		Agent: t.delegator.Name(),
		Data: map[string]interface{}{
			"target":      delegate.Name(),
			"duration_ms": time.Since(started).Milliseconds(),
			"content":     content,
		},
	})
	return shuttle.NewResult(content), nil
}

// DelegateInstanceName composes the chained identity for an isolated
// delegation instance: tester delegated from frontend is
// tester@frontend; nesting extends the chain (c@b@a).
func DelegateInstanceName(target, delegator string) string {
	return target + "@" + delegator
}

// DelegationChain splits an instance name into its base and delegator
// chain.
func DelegationChain(name string) (base string, chain []string) {
	parts := strings.Split(name, "@")
	return parts[0], parts[1:]
}
