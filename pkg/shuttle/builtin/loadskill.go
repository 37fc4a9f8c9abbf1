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
package builtin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/teradata-labs/weave/pkg/shuttle"
)

// LoadSkillTool loads a skill document and installs it on the agent's
// registry, restricting the active toolset for subsequent requests.
type LoadSkillTool struct {
	registry *shuttle.Registry
	dir      string
}

// NewLoadSkillTool binds the tool to its agent's registry. Skill names
// resolve to <dir>/<name>.md.
func NewLoadSkillTool(registry *shuttle.Registry, dir string) *LoadSkillTool {
	return &LoadSkillTool{registry: registry, dir: dir}
}

func (t *LoadSkillTool) Name() string { return "LoadSkill" }

func (t *LoadSkillTool) Description() string {
	return "Load a skill by name. The skill's instructions are returned and its tool list restricts which tools stay active. Pass an empty name to unload the current skill."
}

func (t *LoadSkillTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("LoadSkill parameters", map[string]*shuttle.JSONSchema{
		"name": shuttle.NewStringSchema("Skill name, or empty to unload"),
	}, nil)
}

func (t *LoadSkillTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	name, _ := params["name"].(string)
	if name == "" {
		t.registry.SetSkill(nil)
		return shuttle.NewResult("Skill unloaded; full toolset restored."), nil
	}
	skill, err := shuttle.LoadSkillFile(filepath.Join(t.dir, name+".md"))
	if err != nil {
		return shuttle.NewErrorResult("SKILL_NOT_FOUND", fmt.Sprintf("cannot load skill %q: %v", name, err)), nil
	}
	t.registry.SetSkill(skill)
	return shuttle.NewResult(fmt.Sprintf("Skill %q loaded.\n\n%s", skill.Name, skill.Body)), nil
}
