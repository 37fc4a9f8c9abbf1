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
package shuttle

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Source tags where a registered tool came from.
type Source string

const (
	SourceBuiltin    Source = "builtin"
	SourceDelegation Source = "delegation"
	SourceMCP        Source = "mcp"
	SourcePlugin     Source = "plugin"
)

// Entry is one registered tool with its provenance.
type Entry struct {
	Tool      Tool
	Source    Source
	Removable bool
}

// Registry is a per-agent tool table. Non-removable tools are always
// active; removable tools can be deactivated by the current skill.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	skill   *Skill
}

// NewRegistry creates an empty per-agent tool registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a tool under its own name. Custom (plugin-source or
// builtin-source user) tools cannot override an existing builtin or
// plugin tool; delegation and MCP tools follow the same rule.
func (r *Registry) Register(tool Tool, source Source, removable bool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[name]; ok {
		if existing.Source == SourceBuiltin || existing.Source == SourcePlugin {
			return fmt.Errorf("tool %q already registered from source %s", name, existing.Source)
		}
	}
	r.entries[name] = Entry{Tool: tool, Source: source, Removable: removable}
	return nil
}

// Get retrieves a tool entry by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Unregister removes a tool. Non-removable tools cannot be unregistered.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("tool %q not registered", name)
	}
	if !e.Removable {
		return fmt.Errorf("tool %q is not removable", name)
	}
	delete(r.entries, name)
	return nil
}

// SetSkill installs the active skill, or clears it when nil. The skill
// restricts the active toolset to the tools it lists, except tools
// registered with removable=false which stay active regardless.
func (r *Registry) SetSkill(s *Skill) {
	r.mu.Lock()
	r.skill = s
	r.mu.Unlock()
}

// Skill returns the currently active skill, nil if none.
func (r *Registry) Skill() *Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skill
}

// Active computes the tool set presented to the provider for the next
// request, given the current skill state. Sorted by name for stable
// request bodies.
func (r *Registry) Active() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allowed map[string]bool
	if r.skill != nil && len(r.skill.Tools) > 0 {
		allowed = make(map[string]bool, len(r.skill.Tools))
		for _, name := range r.skill.Tools {
			allowed[name] = true
		}
	}

	names := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if allowed != nil && e.Removable && !allowed[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Tool, len(names))
	for i, name := range names {
		out[i] = r.entries[name].Tool
	}
	return out
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListBySource returns the names of tools registered from one source.
func (r *Registry) ListBySource(source Source) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, e := range r.entries {
		if e.Source == source {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// InferToolName derives a tool name from a Go type: the type name with a
// "Tool" suffix stripped, so WeatherTool registers as Weather.
func InferToolName(tool Tool) string {
	t := reflect.TypeOf(tool)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.Name()
	if trimmed := strings.TrimSuffix(name, "Tool"); trimmed != "" {
		return trimmed
	}
	return name
}
