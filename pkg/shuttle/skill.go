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
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is a document loaded at runtime that restricts the active
// toolset. Tools listed in the front-matter stay active; everything else
// removable is deactivated while the skill is loaded.
type Skill struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description"`
	Tools       []string            `yaml:"tools"`
	Permissions map[string][]string `yaml:"permissions"`

	// Body is the markdown content after the front-matter.
	Body string `yaml:"-"`
}

// ParseSkill reads a skill document: YAML front-matter delimited by
// "---" lines, followed by a markdown body.
func ParseSkill(content string) (*Skill, error) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return nil, fmt.Errorf("skill document has no front-matter")
	}
	front, body, ok := strings.Cut(rest, "\n---")
	if !ok {
		return nil, fmt.Errorf("skill front-matter is not terminated")
	}
	var s Skill
	if err := yaml.Unmarshal([]byte(front), &s); err != nil {
		return nil, fmt.Errorf("parse skill front-matter: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("skill has no name")
	}
	s.Body = strings.TrimLeft(body, "\n")
	return &s, nil
}

// LoadSkillFile reads and parses a skill document from disk.
func LoadSkillFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill file: %w", err)
	}
	return ParseSkill(string(data))
}
