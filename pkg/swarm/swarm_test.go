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
package swarm

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teradata-labs/weave/pkg/agent"
	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/hooks"
	"github.com/teradata-labs/weave/pkg/llm"
	"github.com/teradata-labs/weave/pkg/types"
)

// hookReprompt reprompts once from swarm_stop, counting invocations.
func hookReprompt(count *int) hooks.Hook {
	return hooks.Hook{
		Event: hooks.SwarmStop,
		Handler: func(ctx context.Context, hc *hooks.Context) (hooks.Action, error) {
			*count++
			if *count == 1 {
				return hooks.Reprompt("make it better"), nil
			}
			return hooks.Continue(), nil
		},
	}
}

// fakeProvider replays scripted responses per agent model; the factory
// below shares scripts across instances of the same agent.
type fakeProvider struct {
	mu    sync.Mutex
	steps []*llm.Response
	errs  []error
	delay time.Duration
	calls int
}

func (p *fakeProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.steps) {
		return p.steps[i], nil
	}
	return &llm.Response{Content: "done", StopReason: "end_turn", Model: "test-model"}, nil
}

func (p *fakeProvider) Stream(ctx context.Context, req *llm.Request, h llm.StreamHandler) (*llm.Response, error) {
	return p.Complete(ctx, req)
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "test-model" }

// scriptedFactory returns the same provider for every instance of an
// agent, keyed by base name.
func scriptedFactory(byAgent map[string]*fakeProvider) ProviderFactory {
	return func(def *agent.Definition) (llm.Provider, error) {
		if p, ok := byAgent[def.Name]; ok {
			return p, nil
		}
		return &fakeProvider{}, nil
	}
}

func resp(content string, in, out int, calls ...types.ToolCall) *llm.Response {
	return &llm.Response{
		Content:    content,
		ToolCalls:  calls,
		StopReason: "end_turn",
		Model:      "claude-sonnet-4-5",
		Usage:      types.Usage{InputTokens: in, OutputTokens: out},
	}
}

func def(name string, dels ...agent.Delegation) *agent.Definition {
	return &agent.Definition{Name: name, Model: "claude-sonnet-4-5", Delegations: dels}
}

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name    string
		build   func() (*Swarm, error)
		wantErr string
	}{
		{"no name", func() (*Swarm, error) {
			return New("", []*agent.Definition{def("a")})
		}, "no name"},
		{"no agents", func() (*Swarm, error) {
			return New("team", nil)
		}, "no agents"},
		{"duplicate agent", func() (*Swarm, error) {
			return New("team", []*agent.Definition{def("a"), def("a")})
		}, "twice"},
		{"unknown delegation target", func() (*Swarm, error) {
			return New("team", []*agent.Definition{def("a", agent.Delegation{Agent: "ghost"})})
		}, "unknown agent"},
		{"unknown default agent", func() (*Swarm, error) {
			return New("team", []*agent.Definition{def("a")}, WithDefaultAgent("b"))
		}, "not declared"},
		{"zero execution timeout", func() (*Swarm, error) {
			return New("team", []*agent.Definition{def("a")}, WithExecutionTimeout(0))
		}, "must be positive"},
		{"negative execution timeout", func() (*Swarm, error) {
			return New("team", []*agent.Definition{def("a")}, WithExecutionTimeout(-time.Second))
		}, "must be positive"},
		{"shared self delegation", func() (*Swarm, error) {
			d := def("a", agent.Delegation{Agent: "a"})
			d.SharedAcrossDelegations = true
			return New("team", []*agent.Definition{d})
		}, "cannot delegate to itself"},
		{"isolated self delegation", func() (*Swarm, error) {
			return New("team", []*agent.Definition{def("a", agent.Delegation{Agent: "a"})})
		}, "cannot delegate to itself"},
		{"shared cycle", func() (*Swarm, error) {
			a := def("a", agent.Delegation{Agent: "b"})
			a.SharedAcrossDelegations = true
			b := def("b", agent.Delegation{Agent: "a"})
			b.SharedAcrossDelegations = true
			return New("team", []*agent.Definition{a, b})
		}, "delegation cycle"},
		{"isolated cycle", func() (*Swarm, error) {
			return New("team", []*agent.Definition{
				def("a", agent.Delegation{Agent: "b"}),
				def("b", agent.Delegation{Agent: "a"}),
			})
		}, "delegation cycle"},
		{"indirect cycle", func() (*Swarm, error) {
			return New("team", []*agent.Definition{
				def("a", agent.Delegation{Agent: "b"}),
				def("b", agent.Delegation{Agent: "c"}),
				def("c", agent.Delegation{Agent: "a"}),
			})
		}, "delegation cycle"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.build()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error containing %q, got %v", tc.wantErr, err)
			}
		})
	}

	// An acyclic chain with a shared fan-in target is fine.
	shared := def("c")
	shared.SharedAcrossDelegations = true
	if _, err := New("team", []*agent.Definition{
		def("a", agent.Delegation{Agent: "b"}, agent.Delegation{Agent: "c"}),
		def("b", agent.Delegation{Agent: "c"}),
		shared,
	}); err != nil {
		t.Fatalf("acyclic topology rejected: %v", err)
	}
}

func TestDeriveSwarmID(t *testing.T) {
	cases := map[string]string{
		"Research Team": "research-team",
		"qa":            "qa",
		"A/B Tester":    "a/b-tester",
		"!!!":           "swarm",
	}
	for in, want := range cases {
		if got := deriveSwarmID(in); got != want {
			t.Errorf("deriveSwarmID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExecute_Simple(t *testing.T) {
	stream := events.NewStream(nil)
	s, err := New("team", []*agent.Definition{def("lead")},
		WithStream(stream),
		WithProviderFactory(scriptedFactory(map[string]*fakeProvider{
			"lead": {steps: []*llm.Response{resp("all finished", 1000, 200)}},
		})),
	)
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Execute(context.Background(), "do the thing")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Success || r.Content != "all finished" {
		t.Fatalf("result: %+v", r)
	}
	if r.LLMRequests != 1 || r.TotalTokens != 1200 {
		t.Errorf("aggregation: %d requests, %d tokens", r.LLMRequests, r.TotalTokens)
	}
	if r.TotalCostUSD <= 0 {
		t.Errorf("cost not computed: %v", r.TotalCostUSD)
	}
	u := r.PerAgentUsage["lead"]
	if u == nil || u.InputTokens != 1000 || u.OutputTokens != 200 {
		t.Errorf("per-agent usage: %+v", u)
	}

	// Event identity: every event carries the execution and swarm ids.
	var sawStart, sawStop bool
	for _, e := range r.Logs {
		if e.ExecutionID == "" || !strings.HasPrefix(e.ExecutionID, "exec_team_") {
			t.Errorf("event %s has execution id %q", e.Type, e.ExecutionID)
		}
		if e.SwarmID != "team" {
			t.Errorf("event %s has swarm id %q", e.Type, e.SwarmID)
		}
		switch e.Type {
		case events.SwarmStart:
			sawStart = true
		case events.SwarmStop:
			sawStop = true
		}
	}
	if !sawStart || !sawStop {
		t.Errorf("swarm lifecycle events missing: start=%v stop=%v", sawStart, sawStop)
	}
}

func TestExecute_IsolatedDelegation(t *testing.T) {
	// Both frontend and backend delegate to tester; each gets its own
	// instance with its own conversation.
	stream := events.NewStream(nil)
	providers := map[string]*fakeProvider{
		"lead": {steps: []*llm.Response{
			resp("", 10, 5,
				types.ToolCall{ID: "tc_f", Name: "WorkWithFrontend",
					Arguments: map[string]interface{}{"message": "build the ui"}},
				types.ToolCall{ID: "tc_b", Name: "WorkWithBackend",
					Arguments: map[string]interface{}{"message": "build the api"}}),
			resp("both teams reported", 30, 5),
		}},
		"frontend": {steps: []*llm.Response{
			resp("", 10, 5, types.ToolCall{ID: "tc_t1", Name: "WorkWithTester",
				Arguments: map[string]interface{}{"message": "test the ui"}}),
			resp("ui built and tested", 20, 5),
		}},
		"backend": {steps: []*llm.Response{
			resp("", 10, 5, types.ToolCall{ID: "tc_t2", Name: "WorkWithTester",
				Arguments: map[string]interface{}{"message": "test the api"}}),
			resp("api built and tested", 20, 5),
		}},
		"tester": {steps: []*llm.Response{
			resp("tests pass", 10, 5),
			resp("tests pass", 10, 5),
		}},
	}
	s, err := New("dev-team", []*agent.Definition{
		def("lead", agent.Delegation{Agent: "frontend"}, agent.Delegation{Agent: "backend"}),
		def("frontend", agent.Delegation{Agent: "tester"}),
		def("backend", agent.Delegation{Agent: "tester"}),
		def("tester"),
	},
		WithStream(stream),
		WithProviderFactory(scriptedFactory(providers)),
	)
	if err != nil {
		t.Fatal(err)
	}

	r, err := s.Execute(context.Background(), "ship the feature")
	if err != nil {
		t.Fatal(err)
	}
	if r.Content != "both teams reported" {
		t.Fatalf("content: %q", r.Content)
	}

	// Distinct isolated instances appeared for each delegator.
	involved := strings.Join(r.AgentsUsed, ",")
	if !strings.Contains(involved, "tester@frontend@lead") || !strings.Contains(involved, "tester@backend@lead") {
		t.Errorf("isolated tester instances missing: %v", r.AgentsUsed)
	}

	var lazyStarts int
	for _, e := range r.Logs {
		if e.Type == events.AgentLazyInitializationComplete {
			lazyStarts++
		}
	}
	if lazyStarts != 4 {
		t.Errorf("expected 4 lazy instances (frontend@lead, backend@lead, tester@...), got %d", lazyStarts)
	}
}

func TestExecute_SharedDelegation(t *testing.T) {
	// A shared notes agent accumulates context across delegators.
	stream := events.NewStream(nil)
	notes := &fakeProvider{steps: []*llm.Response{
		resp("noted", 10, 5),
		resp("noted again", 10, 5),
	}}
	providers := map[string]*fakeProvider{
		"lead": {steps: []*llm.Response{
			resp("", 10, 5, types.ToolCall{ID: "tc_1", Name: "WorkWithNotes",
				Arguments: map[string]interface{}{"message": "remember A"}}),
			resp("", 10, 5, types.ToolCall{ID: "tc_2", Name: "WorkWithNotes",
				Arguments: map[string]interface{}{"message": "remember B", "reset_context": false}}),
			resp("finished", 10, 5),
		}},
		"notes": notes,
	}
	shared := def("notes")
	shared.SharedAcrossDelegations = true
	s, err := New("team", []*agent.Definition{
		def("lead", agent.Delegation{Agent: "notes", PreserveContext: true}),
		shared,
	},
		WithStream(stream),
		WithProviderFactory(scriptedFactory(providers)),
	)
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Execute(context.Background(), "take notes")
	if err != nil {
		t.Fatal(err)
	}
	if r.Content != "finished" {
		t.Fatalf("content: %q", r.Content)
	}
	// The shared instance keeps its base name and both conversations.
	inst, err := s.Agent("notes")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Name() != "notes" {
		t.Errorf("shared instance renamed: %q", inst.Name())
	}
	if got := len(inst.Messages()); got != 4 {
		t.Errorf("shared conversation length %d, want 4", got)
	}
}

func TestExecute_Timeout(t *testing.T) {
	stream := events.NewStream(nil)
	s, err := New("team", []*agent.Definition{def("lead")},
		WithStream(stream),
		WithExecutionTimeout(50*time.Millisecond),
		WithProviderFactory(scriptedFactory(map[string]*fakeProvider{
			"lead": {delay: time.Second},
		})),
	)
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Execute(context.Background(), "slow work")
	if err != nil {
		t.Fatalf("timeout must produce a result, not an error: %v", err)
	}
	if r.Success {
		t.Error("timed-out run marked successful")
	}
	if !strings.Contains(r.Error, "timed out") {
		t.Errorf("error: %q", r.Error)
	}
	if r.Metadata["timeout"] != true {
		t.Errorf("metadata: %+v", r.Metadata)
	}
	var sawTimeout bool
	for _, e := range r.Logs {
		if e.Type == events.ExecutionTimeout {
			sawTimeout = true
		}
	}
	if !sawTimeout {
		t.Error("execution_timeout not emitted")
	}
}

func TestExecute_RepromptLoop(t *testing.T) {
	stream := events.NewStream(nil)
	var stops int
	s, err := New("team", []*agent.Definition{def("lead")},
		WithStream(stream),
		WithProviderFactory(scriptedFactory(map[string]*fakeProvider{
			"lead": {steps: []*llm.Response{
				resp("draft", 10, 5),
				resp("final version", 10, 5),
			}},
		})),
		WithHooks(hookReprompt(&stops)),
	)
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Execute(context.Background(), "write it")
	if err != nil {
		t.Fatal(err)
	}
	if r.Content != "final version" {
		t.Errorf("content: %q", r.Content)
	}
	if stops != 2 {
		t.Errorf("swarm_stop hook ran %d times, want 2", stops)
	}
}

func TestStartStopWait(t *testing.T) {
	stream := events.NewStream(nil)
	s, err := New("team", []*agent.Definition{def("lead")},
		WithStream(stream),
		WithProviderFactory(scriptedFactory(map[string]*fakeProvider{
			"lead": {delay: 10 * time.Second},
		})),
	)
	if err != nil {
		t.Fatal(err)
	}
	h := s.Start(context.Background(), "long job")
	time.Sleep(20 * time.Millisecond)
	h.Stop()
	r, err := h.Wait()
	if err != nil {
		t.Fatalf("cancelled run returned error: %v", err)
	}
	if r != nil {
		t.Fatalf("cancelled run returned result: %+v", r)
	}
}

func TestTranscript(t *testing.T) {
	stream := events.NewStream(nil)
	s, err := New("team", []*agent.Definition{def("lead")},
		WithStream(stream),
		WithProviderFactory(scriptedFactory(map[string]*fakeProvider{
			"lead": {steps: []*llm.Response{
				resp("", 10, 5, types.ToolCall{ID: "tc_1", Name: "Think",
					Arguments: map[string]interface{}{"thought": "plan"}}),
				resp("here is the answer", 10, 5),
			}},
		})),
	)
	if err != nil {
		t.Fatal(err)
	}
	r, err := s.Execute(context.Background(), "solve this")
	if err != nil {
		t.Fatal(err)
	}
	out := r.Transcript(TranscriptOptions{IncludeToolResults: true})
	for _, want := range []string{
		"USER: solve this",
		"AGENT [lead]: here is the answer",
		"TOOL [lead] → Think(",
		"RESULT [Think]: Thought recorded.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestSnapshotRestore_TopologyValidation(t *testing.T) {
	stream := events.NewStream(nil)
	s, err := New("team", []*agent.Definition{def("lead")},
		WithStream(stream),
		WithProviderFactory(scriptedFactory(map[string]*fakeProvider{
			"lead": {steps: []*llm.Response{resp("saved", 10, 5)}},
		})),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(context.Background(), "remember"); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	data, err := snap.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}

	// Restoring into a swarm with a different topology fails.
	other, err := New("other", []*agent.Definition{def("boss")},
		WithStream(stream),
		WithProviderFactory(scriptedFactory(nil)),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := other.Restore(parsed, RestoreOptions{}); err == nil {
		t.Fatal("restore into mismatched topology succeeded")
	}

	// Restoring into a compatible swarm reinstates the conversation.
	twin, err := New("team", []*agent.Definition{def("lead")},
		WithStream(stream),
		WithProviderFactory(scriptedFactory(nil)),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := twin.Restore(parsed, RestoreOptions{}); err != nil {
		t.Fatal(err)
	}
	inst, err := twin.Agent("lead")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(inst.Messages()); got != 2 {
		t.Errorf("restored conversation length %d", got)
	}
}

func TestCostUSD(t *testing.T) {
	if got := CostUSD("claude-sonnet-4-5", 1_000_000, 0); got != 3.00 {
		t.Errorf("input pricing: %v", got)
	}
	if got := CostUSD("claude-opus-4-2", 0, 1_000_000); got != 75.00 {
		t.Errorf("output pricing: %v", got)
	}
	if got := CostUSD("unknown-model", 1_000_000, 1_000_000); got != 0 {
		t.Errorf("unknown model priced: %v", got)
	}
}
