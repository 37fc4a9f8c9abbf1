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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/weave/pkg/hooks"
)

const swarmYAML = `
swarm:
  name: dev-team
  lead: planner
  execution_timeout: 600
  all_agents:
    model: claude-sonnet-4-5
    context_window: 100000
  agents:
    - name: planner
      system_prompt: "You plan."
      delegations:
        - agent: coder
          preserve_context: true
    - name: coder
      model: claude-opus-4-1
      turn_timeout: 300
      tools: [Bash]
      permissions:
        denied_commands: ["rm\\s+-rf"]
        allow_filesystem_tools: true
  hooks:
    - event: pre_tool_use
      matcher: Bash
      priority: 5
      command: "./audit.sh"
      timeout: 10
`

func TestParse_Swarm(t *testing.T) {
	f, err := Parse([]byte(swarmYAML))
	require.NoError(t, err)
	require.NotNil(t, f.Swarm)
	require.Nil(t, f.Workflow)

	c := f.Swarm
	assert.Equal(t, "dev-team", c.Name)
	assert.Equal(t, "planner", c.Lead)
	assert.Equal(t, 600, c.ExecutionTimeoutSeconds)
	require.Len(t, c.Agents, 2)
	assert.Equal(t, "claude-opus-4-1", c.Agents[1].Model)
	require.Len(t, c.Hooks, 1)
	assert.Equal(t, "pre_tool_use", c.Hooks[0].Event)
}

func TestParse_MutuallyExclusive(t *testing.T) {
	_, err := Parse([]byte("swarm:\n  name: a\nworkflow:\n  name: b\n"))
	require.ErrorIs(t, err, ErrInvalidFile)

	_, err = Parse([]byte("other: {}\n"))
	require.ErrorIs(t, err, ErrInvalidFile)

	_, err = Parse([]byte("swarm: [unclosed"))
	require.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("WEAVE_TEST_MODEL", "claude-sonnet-4-5")
	f, err := Parse([]byte("swarm:\n  name: x\n  agents:\n    - name: a\n      model: ${WEAVE_TEST_MODEL}\n"))
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", f.Swarm.Agents[0].Model)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/weave.yaml")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(swarmYAML), 0o600))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dev-team", f.Swarm.Name)
}

func TestDefinition_DefaultsMerge(t *testing.T) {
	f, err := Parse([]byte(swarmYAML))
	require.NoError(t, err)

	defs, err := f.Swarm.definitions()
	require.NoError(t, err)
	require.Len(t, defs, 2)

	planner, coder := defs[0], defs[1]
	// Inherited from all_agents.
	assert.Equal(t, "claude-sonnet-4-5", planner.Model)
	assert.Equal(t, 100000, planner.ContextWindow)
	// Own field wins over the default.
	assert.Equal(t, "claude-opus-4-1", coder.Model)
	assert.Equal(t, 100000, coder.ContextWindow)

	require.NotNil(t, coder.TurnTimeout)
	assert.Equal(t, 300*time.Second, *coder.TurnTimeout)
	assert.Nil(t, planner.TurnTimeout)

	require.Len(t, planner.Delegations, 1)
	assert.Equal(t, "coder", planner.Delegations[0].Agent)
	assert.True(t, planner.Delegations[0].PreserveContext)

	require.NotNil(t, coder.Permissions)
	assert.Error(t, coder.Permissions.CheckCommand("rm -rf /"))
	assert.NoError(t, coder.Permissions.CheckCommand("ls"))

	// include_defaults is on unless switched off.
	assert.True(t, planner.IncludeDefaults)
}

func TestHookConfig_Conversion(t *testing.T) {
	h, err := (&HookConfig{Event: "pre_tool_use", Matcher: "Bash", Priority: 3, Command: "true"}).hook()
	require.NoError(t, err)
	assert.Equal(t, hooks.PreToolUse, h.Event)
	assert.Equal(t, 3, h.Priority)
	require.NotNil(t, h.Handler)

	h, err = (&HookConfig{Event: "around_llm_request", Command: "true"}).hook()
	require.NoError(t, err)
	assert.Equal(t, hooks.AroundLLMRequest, h.Event)

	_, err = (&HookConfig{Event: "no_such_event", Command: "true"}).hook()
	assert.ErrorContains(t, err, "unknown hook event")

	_, err = (&HookConfig{Event: "swarm_stop"}).hook()
	assert.ErrorContains(t, err, "no command")
}

const workflowYAML = `
workflow:
  name: pipeline
  start_node: draft
  all_agents:
    model: claude-sonnet-4-5
  agents:
    - name: writer
    - name: editor
  nodes:
    - name: draft
      agents: [writer]
      preserve_context: true
    - name: polish
      agents: [editor]
      depends_on: [draft]
      execution_timeout: 120
`

func TestWorkflowConfig_Build(t *testing.T) {
	f, err := Parse([]byte(workflowYAML))
	require.NoError(t, err)
	require.NotNil(t, f.Workflow)

	w, err := f.Workflow.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "polish"}, w.Order())
}

func TestWorkflowConfig_BuildErrors(t *testing.T) {
	base := func() *WorkflowConfig {
		f, err := Parse([]byte(workflowYAML))
		require.NoError(t, err)
		return f.Workflow
	}

	c := base()
	c.Nodes[0].Agents = []string{"ghost"}
	_, err := c.Build()
	assert.ErrorContains(t, err, "unknown agent")

	c = base()
	c.Agents = append(c.Agents, &AgentConfig{Name: "writer"})
	_, err = c.Build()
	assert.ErrorContains(t, err, "twice")

	c = base()
	c.StartNode = "polish"
	_, err = c.Build()
	assert.ErrorContains(t, err, "has dependencies")

	c = base()
	c.StartNode = "missing"
	_, err = c.Build()
	assert.ErrorContains(t, err, "not a declared node")
}

func TestSwarmBuilder(t *testing.T) {
	s, err := NewSwarmBuilder("team").
		WithLead("lead").
		WithAllAgents(AgentDefaults{Model: "claude-sonnet-4-5"}).
		WithAgent(AgentConfig{Name: "lead", Delegations: []*DelegationConfig{{Agent: "helper"}}}).
		WithAgent(AgentConfig{Name: "helper"}).
		WithExecutionTimeout(time.Minute).
		Build(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "team", s.Name())
}

func TestWorkflowBuilder(t *testing.T) {
	w, err := NewWorkflowBuilder("pipeline").
		WithAllAgents(AgentDefaults{Model: "claude-sonnet-4-5"}).
		WithAgent(AgentConfig{Name: "a"}).
		WithNode(NodeConfig{Name: "first", Agents: []string{"a"}}).
		WithNode(NodeConfig{Name: "second", Agents: []string{"a"}, DependsOn: []string{"first"}}).
		WithStartNode("first").
		Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, w.Order())
}
