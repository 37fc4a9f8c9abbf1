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
package agent

import (
	"strings"
	"testing"
	"time"
)

func TestDefinitionValidate(t *testing.T) {
	zero := time.Duration(0)
	negative := -5 * time.Second
	valid := 30 * time.Second

	cases := []struct {
		name    string
		def     Definition
		wantErr string
	}{
		{"minimal", Definition{Name: "a", Model: "m"}, ""},
		{"no name", Definition{Model: "m"}, "no name"},
		{"reserved at", Definition{Name: "a@b", Model: "m"}, "reserved character"},
		{"no model", Definition{Name: "a"}, "no model"},
		{"zero turn timeout", Definition{Name: "a", Model: "m", TurnTimeout: &zero}, "must be positive"},
		{"negative turn timeout", Definition{Name: "a", Model: "m", TurnTimeout: &negative}, "must be positive"},
		{"zero request timeout", Definition{Name: "a", Model: "m", RequestTimeout: &zero}, "must be positive"},
		{"valid timeouts", Definition{Name: "a", Model: "m", TurnTimeout: &valid, RequestTimeout: &valid}, ""},
		{"negative window", Definition{Name: "a", Model: "m", ContextWindow: -1}, "must not be negative"},
		{"delegation no target", Definition{Name: "a", Model: "m", Delegations: []Delegation{{}}}, "no target"},
		{"delegation at target", Definition{Name: "a", Model: "m", Delegations: []Delegation{{Agent: "b@c"}}}, "reserved character"},
		{"duplicate delegation", Definition{Name: "a", Model: "m",
			Delegations: []Delegation{{Agent: "b"}, {Agent: "b"}}}, "twice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("want error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDefinitionDefaults(t *testing.T) {
	d := Definition{Name: "a", Model: "m"}
	if got := d.turnTimeout(); got != DefaultTurnTimeout {
		t.Errorf("turn timeout default: %s", got)
	}
	if got := d.contextWindow(); got != DefaultContextWindow {
		t.Errorf("context window default: %d", got)
	}
	custom := 60 * time.Second
	d.TurnTimeout = &custom
	d.ContextWindow = 1000
	if got := d.turnTimeout(); got != custom {
		t.Errorf("turn timeout override: %s", got)
	}
	if got := d.contextWindow(); got != 1000 {
		t.Errorf("context window override: %d", got)
	}
}

func TestNewInstance_RegistersBuiltins(t *testing.T) {
	a, _, _ := newTestInstance(t, &scriptedProvider{}, nil)
	for _, name := range []string{"Think", "Clock", "TodoWrite", "LoadSkill"} {
		if _, ok := a.Registry().Get(name); !ok {
			t.Errorf("builtin %s not registered", name)
		}
	}
}

func TestNewInstance_RegistersDelegationTools(t *testing.T) {
	a, _, _ := newTestInstance(t, &scriptedProvider{}, func(d *Definition) {
		d.Delegations = []Delegation{
			{Agent: "tester"},
			{Agent: "writer", ToolName: "AskTheWriter"},
		}
	})
	if _, ok := a.Registry().Get("WorkWithTester"); !ok {
		t.Error("WorkWithTester not registered")
	}
	if _, ok := a.Registry().Get("AskTheWriter"); !ok {
		t.Error("custom delegation tool name not registered")
	}
}

func TestBaseName(t *testing.T) {
	a, _, _ := newTestInstance(t, &scriptedProvider{}, nil)
	if a.BaseName() != "worker" {
		t.Errorf("base name: %q", a.BaseName())
	}
	b, err := NewInstance(&Definition{Name: "tester", Model: "m"}, &scriptedProvider{},
		WithInstanceName("tester@lead@root"))
	if err != nil {
		t.Fatal(err)
	}
	if b.Name() != "tester@lead@root" || b.BaseName() != "tester" {
		t.Errorf("name %q base %q", b.Name(), b.BaseName())
	}
}
