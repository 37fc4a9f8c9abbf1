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
package hooks

import (
	"regexp"
	"strings"
)

// matcher decides whether a hook applies to a given tool name.
// An absent pattern matches everything; a literal matches by equality;
// pipe-joined alternatives and regex patterns compile to a regex anchored
// at word boundaries.
type matcher struct {
	all     bool
	literal string
	re      *regexp.Regexp
}

func compileMatcher(pattern string) (*matcher, error) {
	if pattern == "" {
		return &matcher{all: true}, nil
	}
	if strings.Contains(pattern, "|") {
		parts := strings.Split(pattern, "|")
		quoted := make([]string, len(parts))
		for i, p := range parts {
			quoted[i] = regexp.QuoteMeta(strings.TrimSpace(p))
		}
		re, err := regexp.Compile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
		if err != nil {
			return nil, err
		}
		return &matcher{re: re}, nil
	}
	if strings.ContainsAny(pattern, `\.*+?()[]{}^$`) {
		re, err := regexp.Compile(`\b(?:` + pattern + `)\b`)
		if err != nil {
			return nil, err
		}
		return &matcher{re: re}, nil
	}
	return &matcher{literal: pattern}, nil
}

func (m *matcher) matches(name string) bool {
	switch {
	case m.all:
		return true
	case m.re != nil:
		return m.re.MatchString(name)
	default:
		return m.literal == name
	}
}
