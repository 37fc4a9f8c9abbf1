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
	"path"
	"regexp"
	"sync"
)

// FilesystemTools is the tool set forbidden process-wide when
// AllowFilesystemTools is false.
var FilesystemTools = map[string]bool{
	"Read":  true,
	"Write": true,
	"Edit":  true,
	"Grep":  true,
	"Glob":  true,
	"Bash":  true,
}

// Permissions holds per-tool access rules. Deny always wins; absence of
// allow rules means allow-all; explicit allows restrict.
type Permissions struct {
	// Glob patterns against file paths, for file tools.
	AllowedPaths []string
	DeniedPaths  []string

	// Regex patterns against commands, for shell tools.
	AllowedCommands []string
	DeniedCommands  []string

	// AllowFilesystemTools=false is a hard boundary validated at build
	// time: the filesystem tool set is forbidden regardless of per-agent
	// configuration.
	AllowFilesystemTools bool

	mu            sync.Mutex
	denyCommandRE []*regexp.Regexp
	allowCmdRE    []*regexp.Regexp
	compiled      bool
}

// Validate compiles the command regexes and fails fast on bad patterns.
func (p *Permissions) Validate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.compileLocked()
}

func (p *Permissions) compileLocked() error {
	if p.compiled {
		return nil
	}
	for _, pat := range p.DeniedCommands {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("denied command pattern %q: %w", pat, err)
		}
		p.denyCommandRE = append(p.denyCommandRE, re)
	}
	for _, pat := range p.AllowedCommands {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("allowed command pattern %q: %w", pat, err)
		}
		p.allowCmdRE = append(p.allowCmdRE, re)
	}
	p.compiled = true
	return nil
}

// CheckPath authorizes a file path for a file tool.
func (p *Permissions) CheckPath(toolName, filePath string) error {
	if !p.AllowFilesystemTools && FilesystemTools[toolName] {
		return fmt.Errorf("filesystem tools are disabled: %s denied", toolName)
	}
	for _, pat := range p.DeniedPaths {
		if globMatch(pat, filePath) {
			return fmt.Errorf("path %q denied by pattern %q", filePath, pat)
		}
	}
	if len(p.AllowedPaths) == 0 {
		return nil
	}
	for _, pat := range p.AllowedPaths {
		if globMatch(pat, filePath) {
			return nil
		}
	}
	return fmt.Errorf("path %q not covered by any allowed pattern", filePath)
}

// CheckCommand authorizes a shell command.
func (p *Permissions) CheckCommand(command string) error {
	p.mu.Lock()
	if err := p.compileLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	denies, allows := p.denyCommandRE, p.allowCmdRE
	p.mu.Unlock()

	for _, re := range denies {
		if re.MatchString(command) {
			return fmt.Errorf("command denied by pattern %q", re.String())
		}
	}
	if len(allows) == 0 {
		return nil
	}
	for _, re := range allows {
		if re.MatchString(command) {
			return nil
		}
	}
	return fmt.Errorf("command not covered by any allowed pattern")
}

// Check authorizes one tool call given its parameters, routing file tools
// through path rules and shell tools through command rules.
func (p *Permissions) Check(toolName string, params map[string]interface{}) error {
	if p == nil {
		return nil
	}
	if !p.AllowFilesystemTools && FilesystemTools[toolName] {
		return fmt.Errorf("filesystem tools are disabled: %s denied", toolName)
	}
	if toolName == "Bash" {
		if cmd, ok := params["command"].(string); ok {
			return p.CheckCommand(cmd)
		}
		return nil
	}
	if fp, ok := params["file_path"].(string); ok {
		return p.CheckPath(toolName, fp)
	}
	if fp, ok := params["path"].(string); ok {
		return p.CheckPath(toolName, fp)
	}
	return nil
}

// globMatch extends path.Match with ** support: a pattern containing
// "**" matches any number of path segments in that position.
func globMatch(pattern, name string) bool {
	if ok, _ := path.Match(pattern, name); ok {
		return true
	}
	// "dir/**" also covers the directory's immediate children and deeper.
	if idx := indexDoubleStar(pattern); idx >= 0 {
		prefix := pattern[:idx]
		suffix := pattern[idx+2:]
		if len(name) < len(prefix) || name[:len(prefix)] != prefix {
			return false
		}
		rest := name[len(prefix):]
		if suffix == "" || suffix == "/" {
			return true
		}
		// Try the suffix at every segment boundary of the remainder.
		for i := 0; i <= len(rest); i++ {
			if i == 0 || i == len(rest) || rest[i-1] == '/' {
				if ok, _ := path.Match(trimLeadingSlash(suffix), trimLeadingSlash(rest[i:])); ok {
					return true
				}
			}
		}
	}
	return false
}

func indexDoubleStar(pattern string) int {
	for i := 0; i+1 < len(pattern); i++ {
		if pattern[i] == '*' && pattern[i+1] == '*' {
			return i
		}
	}
	return -1
}

func trimLeadingSlash(s string) string {
	if len(s) > 0 && s[0] == '/' {
		return s[1:]
	}
	return s
}
