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
	"context"
	"fmt"
	"sync"
	"testing"
)

// fakeTool is a minimal Tool for registry tests.
type fakeTool struct {
	name     string
	required []string
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool " + f.name }
func (f *fakeTool) InputSchema() *JSONSchema {
	props := map[string]*JSONSchema{}
	for _, r := range f.required {
		props[r] = NewStringSchema(r)
	}
	return NewObjectSchema("params", props, f.required)
}
func (f *fakeTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	return NewResult("ok"), nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeTool{name: "Read"}, SourceBuiltin, true); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	e, ok := r.Get("Read")
	if !ok {
		t.Fatal("tool not found after registration")
	}
	if e.Source != SourceBuiltin || !e.Removable {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestRegistry_CannotOverrideBuiltin(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeTool{name: "Think"}, SourceBuiltin, false); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&fakeTool{name: "Think"}, SourcePlugin, true); err == nil {
		t.Fatal("expected collision error when overriding a builtin")
	}
}

func TestRegistry_UnregisterRespectsRemovable(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "Think"}, SourceBuiltin, false)
	r.Register(&fakeTool{name: "Weather"}, SourcePlugin, true)

	if err := r.Unregister("Think"); err == nil {
		t.Error("expected error unregistering a non-removable tool")
	}
	if err := r.Unregister("Weather"); err != nil {
		t.Errorf("unregister removable tool: %v", err)
	}
	if _, ok := r.Get("Weather"); ok {
		t.Error("tool still present after unregister")
	}
}

func TestRegistry_ActiveWithSkill(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "Think"}, SourceBuiltin, false)
	r.Register(&fakeTool{name: "Read"}, SourceBuiltin, true)
	r.Register(&fakeTool{name: "Bash"}, SourceBuiltin, true)

	r.SetSkill(&Skill{Name: "reader", Tools: []string{"Read"}})
	active := r.Active()
	names := make(map[string]bool)
	for _, tool := range active {
		names[tool.Name()] = true
	}
	if !names["Read"] {
		t.Error("skill-listed tool not active")
	}
	if names["Bash"] {
		t.Error("removable tool outside skill list should be inactive")
	}
	if !names["Think"] {
		t.Error("non-removable tool must stay active under a skill")
	}

	r.SetSkill(nil)
	if len(r.Active()) != 3 {
		t.Error("clearing the skill should restore the full toolset")
	}
}

func TestRegistry_ActiveIsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		r.Register(&fakeTool{name: name}, SourceBuiltin, true)
	}
	active := r.Active()
	for i := 1; i < len(active); i++ {
		if active[i-1].Name() > active[i].Name() {
			t.Fatalf("active list not sorted: %s before %s", active[i-1].Name(), active[i].Name())
		}
	}
}

func TestRegistry_ListBySource(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeTool{name: "Think"}, SourceBuiltin, false)
	r.Register(&fakeTool{name: "WorkWithTester"}, SourceDelegation, true)
	r.Register(&fakeTool{name: "search"}, SourceMCP, true)

	if got := r.ListBySource(SourceDelegation); len(got) != 1 || got[0] != "WorkWithTester" {
		t.Errorf("unexpected delegation tools %v", got)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register(&fakeTool{name: fmt.Sprintf("tool%d", i)}, SourceBuiltin, true)
			r.Active()
			r.List()
		}(i)
	}
	wg.Wait()
	if r.Count() != 10 {
		t.Errorf("expected 10 tools, got %d", r.Count())
	}
}

type WeatherTool struct{ fakeTool }

func TestInferToolName(t *testing.T) {
	w := &WeatherTool{}
	if got := InferToolName(w); got != "Weather" {
		t.Errorf("InferToolName = %q, want Weather", got)
	}
}
