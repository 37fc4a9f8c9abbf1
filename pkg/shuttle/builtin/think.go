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

// Package builtin provides the always-active tools every agent carries:
// Think, Clock, TodoWrite, and LoadSkill. They register with
// removable=false so skills cannot deactivate them.
package builtin

import (
	"context"

	"github.com/teradata-labs/weave/pkg/shuttle"
)

// ThinkTool gives the model a scratch space for reasoning. The thought is
// recorded but has no side effects.
type ThinkTool struct{}

func NewThinkTool() *ThinkTool { return &ThinkTool{} }

func (t *ThinkTool) Name() string { return "Think" }

func (t *ThinkTool) Description() string {
	return "Record a thought while working through a problem. Use this to reason about next steps without taking any action."
}

func (t *ThinkTool) InputSchema() *shuttle.JSONSchema {
	return shuttle.NewObjectSchema("Think parameters", map[string]*shuttle.JSONSchema{
		"thought": shuttle.NewStringSchema("The thought to record"),
	}, []string{"thought"})
}

func (t *ThinkTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	return shuttle.NewResult("Thought recorded."), nil
}
