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

// Package agent implements the chat engine: the reason, tool-call,
// observe loop around an LLM provider, with retry and recovery, context
// management, tool fan-out, and delegation to other agents.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/shuttle"
)

const (
	// DefaultTurnTimeout bounds a single Ask call.
	DefaultTurnTimeout = 1800 * time.Second

	// DefaultContextWindow is assumed when the definition does not
	// override it.
	DefaultContextWindow = 200000
)

// Delegation declares that an agent can hand work to another agent.
type Delegation struct {
	// Agent is the target's base name.
	Agent string

	// ToolName overrides the conventional WorkWith<Target> name.
	ToolName string

	// PreserveContext keeps the delegate's conversation across calls.
	// When false, each delegation starts from a cleared conversation
	// unless the call site overrides reset_context.
	PreserveContext bool
}

// Thinking configures extended reasoning.
type Thinking struct {
	Effort       string
	BudgetTokens int
}

// Definition is an agent's immutable configuration.
type Definition struct {
	Name        string
	Model       string
	Provider    string
	BaseURL     string
	APIVersion  string
	Description string
	Directory   string

	SystemPrompt string
	CodingAgent  bool

	// Tools lists extra tool names to activate; IncludeDefaults keeps
	// the builtin set alongside them.
	Tools           []string
	IncludeDefaults bool

	Delegations             []Delegation
	SharedAcrossDelegations bool

	Streaming bool
	Thinking  *Thinking

	// Nil timeouts use the defaults. Explicit zero or negative values
	// are configuration errors.
	RequestTimeout *time.Duration
	TurnTimeout    *time.Duration

	ContextWindow int
	Headers       map[string]string
	Temperature   *float64
	TopP          *float64

	Permissions *shuttle.Permissions
	Hooks       []hooks.Hook

	// SkillsDir is where LoadSkill resolves skill names.
	SkillsDir string
}

// Validate fails fast on configuration errors. "@" is reserved for
// delegation instance names.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("agent has no name")
	}
	if strings.Contains(d.Name, "@") {
		return fmt.Errorf("agent name %q contains reserved character '@'", d.Name)
	}
	if d.Model == "" {
		return fmt.Errorf("agent %s has no model", d.Name)
	}
	if d.TurnTimeout != nil && *d.TurnTimeout <= 0 {
		return fmt.Errorf("agent %s: turn timeout must be positive, got %s", d.Name, *d.TurnTimeout)
	}
	if d.RequestTimeout != nil && *d.RequestTimeout <= 0 {
		return fmt.Errorf("agent %s: request timeout must be positive, got %s", d.Name, *d.RequestTimeout)
	}
	if d.ContextWindow < 0 {
		return fmt.Errorf("agent %s: context window must not be negative", d.Name)
	}
	seen := make(map[string]bool, len(d.Delegations))
	for _, del := range d.Delegations {
		if del.Agent == "" {
			return fmt.Errorf("agent %s has a delegation with no target", d.Name)
		}
		if strings.Contains(del.Agent, "@") {
			return fmt.Errorf("agent %s: delegation target %q contains reserved character '@'", d.Name, del.Agent)
		}
		if seen[del.Agent] {
			return fmt.Errorf("agent %s declares delegation to %q twice", d.Name, del.Agent)
		}
		seen[del.Agent] = true
	}
	if d.Permissions != nil {
		if err := d.Permissions.Validate(); err != nil {
			return fmt.Errorf("agent %s: %w", d.Name, err)
		}
	}
	return nil
}

func (d *Definition) turnTimeout() time.Duration {
	if d.TurnTimeout != nil {
		return *d.TurnTimeout
	}
	return DefaultTurnTimeout
}

func (d *Definition) contextWindow() int {
	if d.ContextWindow > 0 {
		return d.ContextWindow
	}
	return DefaultContextWindow
}
