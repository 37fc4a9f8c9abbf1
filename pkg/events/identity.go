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
package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Identity carries the execution-scoped identifiers every event is tagged
// with. It is propagated through context so child tasks inherit it
// automatically.
type Identity struct {
	ExecutionID   string
	SwarmID       string
	ParentSwarmID string
}

type identityKey struct{}

// WithIdentity returns a context carrying id. Tasks spawned with this
// context inherit the execution identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the identity from ctx; the zero Identity if none.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// NewExecutionID allocates an execution identifier of the form
// "exec_<swarm_id>_<rand>".
func NewExecutionID(swarmID string) string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// fixed suffix rather than aborting an execution over an id.
		return fmt.Sprintf("exec_%s_00000000", swarmID)
	}
	return fmt.Sprintf("exec_%s_%s", swarmID, hex.EncodeToString(b[:]))
}
