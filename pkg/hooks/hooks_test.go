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
	"context"
	"testing"
	"time"
)

func continueHandler(ctx context.Context, hc *Context) (Action, error) {
	return Continue(), nil
}

func TestRegistry_PriorityOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	mk := func(name string) Handler {
		return func(ctx context.Context, hc *Context) (Action, error) {
			order = append(order, name)
			return Continue(), nil
		}
	}
	if err := r.Register(Hook{Event: UserPrompt, Priority: 1, Handler: mk("low")}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Hook{Event: UserPrompt, Priority: 10, Handler: mk("high")}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(Hook{Event: UserPrompt, Priority: 10, Handler: mk("high2")}); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Run(context.Background(), &Context{Event: UserPrompt}); err != nil {
		t.Fatal(err)
	}
	want := []string{"high", "high2", "low"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order %v, want %v", order, want)
		}
	}
}

func TestRegistry_FirstShortCircuitWins(t *testing.T) {
	r := NewRegistry()
	ran := false
	r.Register(Hook{Event: PreToolUse, Priority: 5, Handler: func(ctx context.Context, hc *Context) (Action, error) {
		return Halt("blocked by policy"), nil
	}})
	r.Register(Hook{Event: PreToolUse, Priority: 1, Handler: func(ctx context.Context, hc *Context) (Action, error) {
		ran = true
		return Continue(), nil
	}})

	action, err := r.Run(context.Background(), &Context{Event: PreToolUse, ToolName: "Bash"})
	if err != nil {
		t.Fatal(err)
	}
	if action.Decision != DecisionHalt || action.Message != "blocked by policy" {
		t.Errorf("unexpected action %+v", action)
	}
	if ran {
		t.Error("lower-priority handler ran after short circuit")
	}
}

func TestRegistry_ToolMatchers(t *testing.T) {
	tests := []struct {
		matcher string
		tool    string
		want    bool
	}{
		{"", "Anything", true},
		{"Bash", "Bash", true},
		{"Bash", "Read", false},
		{"Read|Write|Edit", "Write", true},
		{"Read|Write|Edit", "Bash", false},
		{"Work.*", "WorkWithTester", true},
		{"Work.*", "Read", false},
	}
	for _, tt := range tests {
		r := NewRegistry()
		matched := false
		if err := r.Register(Hook{Event: PreToolUse, Matcher: tt.matcher, Handler: func(ctx context.Context, hc *Context) (Action, error) {
			matched = true
			return Continue(), nil
		}}); err != nil {
			t.Fatalf("matcher %q: %v", tt.matcher, err)
		}
		r.Run(context.Background(), &Context{Event: PreToolUse, ToolName: tt.tool})
		if matched != tt.want {
			t.Errorf("matcher %q against %q: matched=%v, want %v", tt.matcher, tt.tool, matched, tt.want)
		}
	}
}

func TestRegistry_MatcherIgnoredForNonToolEvents(t *testing.T) {
	r := NewRegistry()
	ran := false
	r.Register(Hook{Event: UserPrompt, Matcher: "Bash", Handler: func(ctx context.Context, hc *Context) (Action, error) {
		ran = true
		return Continue(), nil
	}})
	r.Run(context.Background(), &Context{Event: UserPrompt})
	if !ran {
		t.Error("non-tool event should not be filtered by matcher")
	}
}

func TestRegistry_RepromptOnlyFromSwarmStop(t *testing.T) {
	r := NewRegistry()
	r.Register(Hook{Event: AgentStop, Handler: func(ctx context.Context, hc *Context) (Action, error) {
		return Reprompt("try again"), nil
	}})
	if _, err := r.Run(context.Background(), &Context{Event: AgentStop}); err == nil {
		t.Fatal("expected error for reprompt outside swarm_stop")
	}

	r2 := NewRegistry()
	r2.Register(Hook{Event: SwarmStop, Handler: func(ctx context.Context, hc *Context) (Action, error) {
		return Reprompt("try again"), nil
	}})
	action, err := r2.Run(context.Background(), &Context{Event: SwarmStop})
	if err != nil {
		t.Fatal(err)
	}
	if action.Decision != DecisionReprompt || action.Message != "try again" {
		t.Errorf("unexpected action %+v", action)
	}
}

func TestRegistry_RegisterRejectsNilHandler(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Hook{Event: UserPrompt}); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Register(Hook{Event: UserPrompt, Handler: continueHandler})
	if r.Count(UserPrompt) != 1 {
		t.Fatal("expected one hook")
	}
	r.Clear()
	if r.Count(UserPrompt) != 0 {
		t.Error("clear did not remove hooks")
	}
}

func TestShellHandler_ExitCodes(t *testing.T) {
	tests := []struct {
		command string
		want    Decision
	}{
		{"exit 0", DecisionContinue},
		{"echo skipped; exit 1", DecisionSkip},
		{"echo halted >&2; exit 2", DecisionHalt},
	}
	for _, tt := range tests {
		h := NewShellHandler(tt.command, 5*time.Second)
		action, err := h(context.Background(), &Context{Event: PreToolUse, ToolName: "Bash"})
		if err != nil {
			t.Fatalf("command %q: %v", tt.command, err)
		}
		if action.Decision != tt.want {
			t.Errorf("command %q: decision %v, want %v", tt.command, action.Decision, tt.want)
		}
	}
}

func TestShellHandler_ReceivesContextOnStdin(t *testing.T) {
	h := NewShellHandler(`grep -q '"tool_name":"Bash"' && exit 2 || exit 0`, 5*time.Second)
	action, err := h(context.Background(), &Context{Event: PreToolUse, ToolName: "Bash"})
	if err != nil {
		t.Fatal(err)
	}
	if action.Decision != DecisionHalt {
		t.Errorf("handler did not see tool_name on stdin: %+v", action)
	}
}

func TestShellHandler_Timeout(t *testing.T) {
	h := NewShellHandler("sleep 10", 100*time.Millisecond)
	if _, err := h(context.Background(), &Context{Event: PreToolUse}); err == nil {
		t.Fatal("expected timeout error")
	}
}
