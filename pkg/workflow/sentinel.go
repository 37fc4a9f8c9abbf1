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
package workflow

import (
	"errors"
	"fmt"
)

// Control sentinels returned from transforms. Each carries the content
// that stands in for the transform's normal return value, so a redirect
// never silently drops text.

// gotoNode redirects execution to another node.
type gotoNode struct {
	target  string
	content string
}

func (e *gotoNode) Error() string {
	return fmt.Sprintf("goto node %s", e.target)
}

// haltWorkflow ends the workflow with the carried content as the final
// result.
type haltWorkflow struct {
	content string
}

func (e *haltWorkflow) Error() string {
	return "halt workflow"
}

// skipExecution answers a node without running its swarm.
type skipExecution struct {
	content string
}

func (e *skipExecution) Error() string {
	return "skip node execution"
}

// Goto redirects control to target, recording content as this node's
// output. Content is mandatory: downstream nodes and the final result
// must never observe a hole where a transform's output should be.
func Goto(target, content string) error {
	if target == "" {
		return fmt.Errorf("goto requires a target node")
	}
	if content == "" {
		return fmt.Errorf("goto to %s requires content: the redirecting node still owes its output", target)
	}
	return &gotoNode{target: target, content: content}
}

// Halt stops the workflow; content becomes the final result.
func Halt(content string) error {
	if content == "" {
		return fmt.Errorf("halt requires content: it becomes the workflow's final result")
	}
	return &haltWorkflow{content: content}
}

// Skip bypasses the node's swarm; content becomes the node's output.
// Only meaningful from an input transform.
func Skip(content string) error {
	if content == "" {
		return fmt.Errorf("skip requires content: it stands in for the node's output")
	}
	return &skipExecution{content: content}
}

func asGoto(err error) (*gotoNode, bool) {
	var g *gotoNode
	ok := errors.As(err, &g)
	return g, ok
}

func asHalt(err error) (*haltWorkflow, bool) {
	var h *haltWorkflow
	ok := errors.As(err, &h)
	return h, ok
}

func asSkip(err error) (*skipExecution, bool) {
	var s *skipExecution
	ok := errors.As(err, &s)
	return s, ok
}
