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

// Package config loads swarm and workflow definitions from YAML and
// offers a programmatic builder with the same surface. A file declares
// exactly one of the two top-level keys, `swarm:` or `workflow:`.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/weave/pkg/agent"
	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/mcp"
	"github.com/teradata-labs/weave/pkg/shuttle"
	"github.com/teradata-labs/weave/pkg/workflow"
)

var (
	ErrFileNotFound = fmt.Errorf("config file not found")
	ErrInvalidYAML  = fmt.Errorf("invalid YAML syntax in config file")
	ErrInvalidFile  = fmt.Errorf("invalid config structure")
)

// File is one parsed configuration file. Exactly one of Swarm and
// Workflow is set.
type File struct {
	Swarm    *SwarmConfig    `yaml:"swarm"`
	Workflow *WorkflowConfig `yaml:"workflow"`
}

// SwarmConfig is the declarative form of a swarm.
type SwarmConfig struct {
	Name string `yaml:"name"`

	// Lead names the default agent that receives the user prompt.
	Lead string `yaml:"lead"`

	// ExecutionTimeoutSeconds bounds one execute call. Zero means the
	// runtime default.
	ExecutionTimeoutSeconds int `yaml:"execution_timeout"`

	// AllAgents holds defaults merged into every agent entry. An agent's
	// own field wins over the default.
	AllAgents *AgentDefaults `yaml:"all_agents"`

	Agents     []*AgentConfig     `yaml:"agents"`
	Hooks      []*HookConfig      `yaml:"hooks"`
	MCPServers []mcp.ServerConfig `yaml:"mcp_servers"`
}

// WorkflowConfig is the declarative form of a workflow. Agents are
// declared once and referenced from nodes by name.
type WorkflowConfig struct {
	Name string `yaml:"name"`

	// StartNode optionally names the entry node; it must be a root of
	// the DAG.
	StartNode string `yaml:"start_node"`

	Nodes  []*NodeConfig  `yaml:"nodes"`
	Agents []*AgentConfig `yaml:"agents"`

	AllAgents *AgentDefaults `yaml:"all_agents"`
}

// NodeConfig is one workflow node. Transforms are programmatic-only;
// YAML files cannot declare them.
type NodeConfig struct {
	Name                    string   `yaml:"name"`
	Agents                  []string `yaml:"agents"`
	DependsOn               []string `yaml:"depends_on"`
	DefaultAgent            string   `yaml:"default_agent"`
	PreserveContext         bool     `yaml:"preserve_context"`
	ExecutionTimeoutSeconds int      `yaml:"execution_timeout"`

	Input  workflow.Transform `yaml:"-"`
	Output workflow.Transform `yaml:"-"`
}

// AgentDefaults are the fields an all_agents block may set.
type AgentDefaults struct {
	Model           string            `yaml:"model"`
	Provider        string            `yaml:"provider"`
	BaseURL         string            `yaml:"base_url"`
	APIVersion      string            `yaml:"api_version"`
	Tools           []string          `yaml:"tools"`
	IncludeDefaults *bool             `yaml:"include_defaults"`
	Streaming       *bool             `yaml:"streaming"`
	TurnTimeout     int               `yaml:"turn_timeout"`
	RequestTimeout  int               `yaml:"request_timeout"`
	ContextWindow   int               `yaml:"context_window"`
	Headers         map[string]string `yaml:"headers"`
	Temperature     *float64          `yaml:"temperature"`
	TopP            *float64          `yaml:"top_p"`
	Permissions     *PermissionConfig `yaml:"permissions"`
	SkillsDir       string            `yaml:"skills_dir"`
}

// AgentConfig is one agent entry.
type AgentConfig struct {
	Name         string `yaml:"name"`
	Model        string `yaml:"model"`
	Provider     string `yaml:"provider"`
	BaseURL      string `yaml:"base_url"`
	APIVersion   string `yaml:"api_version"`
	Description  string `yaml:"description"`
	Directory    string `yaml:"directory"`
	SystemPrompt string `yaml:"system_prompt"`
	CodingAgent  bool   `yaml:"coding_agent"`

	Tools           []string `yaml:"tools"`
	IncludeDefaults *bool    `yaml:"include_defaults"`

	Delegations []*DelegationConfig `yaml:"delegations"`
	Shared      bool                `yaml:"shared"`

	Streaming *bool           `yaml:"streaming"`
	Thinking  *ThinkingConfig `yaml:"thinking"`

	// Timeouts in seconds. Zero means the default; negative values are
	// rejected by definition validation.
	TurnTimeout    int `yaml:"turn_timeout"`
	RequestTimeout int `yaml:"request_timeout"`

	ContextWindow int               `yaml:"context_window"`
	Headers       map[string]string `yaml:"headers"`
	Temperature   *float64          `yaml:"temperature"`
	TopP          *float64          `yaml:"top_p"`

	Permissions *PermissionConfig `yaml:"permissions"`
	Hooks       []*HookConfig     `yaml:"hooks"`
	SkillsDir   string            `yaml:"skills_dir"`
}

// DelegationConfig declares one delegation edge.
type DelegationConfig struct {
	Agent           string `yaml:"agent"`
	ToolName        string `yaml:"tool_name"`
	PreserveContext bool   `yaml:"preserve_context"`
}

// ThinkingConfig enables extended reasoning.
type ThinkingConfig struct {
	Effort       string `yaml:"effort"`
	BudgetTokens int    `yaml:"budget_tokens"`
}

// PermissionConfig mirrors shuttle.Permissions in YAML form.
type PermissionConfig struct {
	AllowedPaths         []string `yaml:"allowed_paths"`
	DeniedPaths          []string `yaml:"denied_paths"`
	AllowedCommands      []string `yaml:"allowed_commands"`
	DeniedCommands       []string `yaml:"denied_commands"`
	AllowFilesystemTools *bool    `yaml:"allow_filesystem_tools"`
}

// HookConfig declares a shell hook: the command receives the hook
// context on stdin as JSON and answers with its exit code.
type HookConfig struct {
	Event          string `yaml:"event"`
	Matcher        string `yaml:"matcher"`
	Priority       int    `yaml:"priority"`
	Command        string `yaml:"command"`
	TimeoutSeconds int    `yaml:"timeout"`
}

// Load reads and parses a configuration file. Environment variables in
// the form ${VAR} or $VAR are expanded before parsing.
func Load(path string) (*File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML bytes into a validated File.
func Parse(data []byte) (*File, error) {
	expanded := os.Expand(string(data), os.Getenv)

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidYAML, err.Error())
	}
	if f.Swarm != nil && f.Workflow != nil {
		return nil, fmt.Errorf("%w: swarm and workflow are mutually exclusive in one file", ErrInvalidFile)
	}
	if f.Swarm == nil && f.Workflow == nil {
		return nil, fmt.Errorf("%w: file declares neither swarm nor workflow", ErrInvalidFile)
	}
	return &f, nil
}

// definition converts one agent entry, with defaults merged, into a
// runtime definition. Validation happens in swarm/workflow construction.
func (a *AgentConfig) definition(defaults *AgentDefaults) (*agent.Definition, error) {
	merged := *a
	if defaults != nil {
		mergeDefaults(&merged, defaults)
	}

	def := &agent.Definition{
		Name:         merged.Name,
		Model:        merged.Model,
		Provider:     merged.Provider,
		BaseURL:      merged.BaseURL,
		APIVersion:   merged.APIVersion,
		Description:  merged.Description,
		Directory:    merged.Directory,
		SystemPrompt: merged.SystemPrompt,
		CodingAgent:  merged.CodingAgent,
		Tools:        merged.Tools,
		ContextWindow: merged.ContextWindow,
		Headers:       merged.Headers,
		Temperature:   merged.Temperature,
		TopP:          merged.TopP,
		SkillsDir:     merged.SkillsDir,

		SharedAcrossDelegations: merged.Shared,
	}
	if merged.IncludeDefaults != nil {
		def.IncludeDefaults = *merged.IncludeDefaults
	} else {
		def.IncludeDefaults = true
	}
	if merged.Streaming != nil {
		def.Streaming = *merged.Streaming
	}
	if merged.Thinking != nil {
		def.Thinking = &agent.Thinking{
			Effort:       merged.Thinking.Effort,
			BudgetTokens: merged.Thinking.BudgetTokens,
		}
	}
	if merged.TurnTimeout != 0 {
		d := time.Duration(merged.TurnTimeout) * time.Second
		def.TurnTimeout = &d
	}
	if merged.RequestTimeout != 0 {
		d := time.Duration(merged.RequestTimeout) * time.Second
		def.RequestTimeout = &d
	}
	for _, dc := range merged.Delegations {
		def.Delegations = append(def.Delegations, agent.Delegation{
			Agent:           dc.Agent,
			ToolName:        dc.ToolName,
			PreserveContext: dc.PreserveContext,
		})
	}
	if merged.Permissions != nil {
		def.Permissions = merged.Permissions.permissions()
	}
	for _, hc := range merged.Hooks {
		h, err := hc.hook()
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", merged.Name, err)
		}
		def.Hooks = append(def.Hooks, h)
	}
	return def, nil
}

// mergeDefaults fills unset agent fields from the all_agents block.
func mergeDefaults(a *AgentConfig, d *AgentDefaults) {
	if a.Model == "" {
		a.Model = d.Model
	}
	if a.Provider == "" {
		a.Provider = d.Provider
	}
	if a.BaseURL == "" {
		a.BaseURL = d.BaseURL
	}
	if a.APIVersion == "" {
		a.APIVersion = d.APIVersion
	}
	if len(a.Tools) == 0 {
		a.Tools = d.Tools
	}
	if a.IncludeDefaults == nil {
		a.IncludeDefaults = d.IncludeDefaults
	}
	if a.Streaming == nil {
		a.Streaming = d.Streaming
	}
	if a.TurnTimeout == 0 {
		a.TurnTimeout = d.TurnTimeout
	}
	if a.RequestTimeout == 0 {
		a.RequestTimeout = d.RequestTimeout
	}
	if a.ContextWindow == 0 {
		a.ContextWindow = d.ContextWindow
	}
	if a.Headers == nil {
		a.Headers = d.Headers
	}
	if a.Temperature == nil {
		a.Temperature = d.Temperature
	}
	if a.TopP == nil {
		a.TopP = d.TopP
	}
	if a.Permissions == nil {
		a.Permissions = d.Permissions
	}
	if a.SkillsDir == "" {
		a.SkillsDir = d.SkillsDir
	}
}

func (p *PermissionConfig) permissions() *shuttle.Permissions {
	perms := &shuttle.Permissions{
		AllowedPaths:         p.AllowedPaths,
		DeniedPaths:          p.DeniedPaths,
		AllowedCommands:      p.AllowedCommands,
		DeniedCommands:       p.DeniedCommands,
		AllowFilesystemTools: true,
	}
	if p.AllowFilesystemTools != nil {
		perms.AllowFilesystemTools = *p.AllowFilesystemTools
	}
	return perms
}

var hookEvents = map[string]hooks.Event{
	"swarm_start":        hooks.SwarmStart,
	"swarm_stop":         hooks.SwarmStop,
	"pre_tool_use":       hooks.PreToolUse,
	"post_tool_use":      hooks.PostToolUse,
	"user_prompt":        hooks.UserPrompt,
	"around_llm_request": hooks.AroundLLMRequest,
	"agent_stop":         hooks.AgentStop,
	"first_message":      hooks.FirstMessage,
	"pre_delegation":     hooks.PreDelegation,
	"post_delegation":    hooks.PostDelegation,
	"context_warning":    hooks.ContextWarning,
}

func (hc *HookConfig) hook() (hooks.Hook, error) {
	event, ok := hookEvents[hc.Event]
	if !ok {
		return hooks.Hook{}, fmt.Errorf("unknown hook event %q", hc.Event)
	}
	if hc.Command == "" {
		return hooks.Hook{}, fmt.Errorf("hook for %s has no command", hc.Event)
	}
	return hooks.Hook{
		Event:    event,
		Matcher:  hc.Matcher,
		Priority: hc.Priority,
		Handler:  hooks.NewShellHandler(hc.Command, time.Duration(hc.TimeoutSeconds)*time.Second),
	}, nil
}
