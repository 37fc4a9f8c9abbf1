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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/teradata-labs/weave/pkg/agent"
)

// snapshotVersion guards against restoring snapshots written by an
// incompatible release.
const snapshotVersion = 1

// Snapshot is a serializable capture of every live instance in a swarm.
type Snapshot struct {
	Version   int                            `json:"version"`
	SwarmName string                         `json:"swarm_name"`
	SwarmID   string                         `json:"swarm_id"`
	CreatedAt time.Time                      `json:"created_at"`
	Agents    map[string]agent.AgentSnapshot `json:"agents"`
}

// Snapshot captures every instantiated agent, delegation instances
// included.
func (s *Swarm) Snapshot() *Snapshot {
	snap := &Snapshot{
		Version:   snapshotVersion,
		SwarmName: s.name,
		SwarmID:   s.id,
		CreatedAt: time.Now().UTC(),
		Agents:    make(map[string]agent.AgentSnapshot),
	}
	s.mu.Lock()
	instances := make(map[string]*agent.Instance, len(s.instances))
	for k, v := range s.instances {
		instances[k] = v
	}
	s.mu.Unlock()
	for key, inst := range instances {
		snap.Agents[key] = inst.Snapshot()
	}
	return snap
}

// RestoreOptions control snapshot restoration.
type RestoreOptions struct {
	// PreserveHistoricalSystemPrompts keeps the snapshot's prompts
	// instead of the current definitions'.
	PreserveHistoricalSystemPrompts bool
}

// Restore reinstates a snapshot into this swarm. Every snapshot agent's
// base name must exist in the current topology; extra agents in the
// current topology simply start fresh.
func (s *Swarm) Restore(snap *Snapshot, opts RestoreOptions) error {
	if snap.Version != snapshotVersion {
		return fmt.Errorf("snapshot version %d is not supported (want %d)", snap.Version, snapshotVersion)
	}
	for key := range snap.Agents {
		base, _ := baseOf(key)
		if _, ok := s.defs[base]; !ok {
			return fmt.Errorf("snapshot agent %q has no counterpart in swarm %s", key, s.name)
		}
	}
	for key, as := range snap.Agents {
		base, _ := baseOf(key)
		inst, err := s.instance(context.Background(), key, s.defs[base])
		if err != nil {
			return fmt.Errorf("restore %s: %w", key, err)
		}
		inst.Restore(as, agent.RestoreOptions{
			PreserveHistoricalSystemPrompt: opts.PreserveHistoricalSystemPrompts,
		})
	}
	return nil
}

// Marshal serializes the snapshot for file storage.
func (s *Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalSnapshot parses a serialized snapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}

func baseOf(key string) (base, chain string) {
	base, chain, _ = strings.Cut(key, "@")
	return base, chain
}
