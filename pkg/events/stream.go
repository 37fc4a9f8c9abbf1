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
	"sync"
	"time"

	"go.uber.org/zap"
)

// Subscriber receives events. A subscriber must not block; failures are
// swallowed so a buggy consumer cannot poison the run.
type Subscriber func(Event)

type subscription struct {
	fn    Subscriber
	types map[Type]bool // nil matches all
}

func (s subscription) matches(t Type) bool {
	return s.types == nil || s.types[t]
}

// Stream is the process-wide event log. Subscribers are scoped to an
// execution id and installed fresh on entry to execute; global
// subscribers (durable sinks) see every event.
type Stream struct {
	mu     sync.RWMutex
	perExe map[string][]subscription
	global []subscription
	logger *zap.Logger
}

// NewStream creates an empty stream. A nil logger defaults to no-op.
func NewStream(logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		perExe: make(map[string][]subscription),
		logger: logger,
	}
}

var (
	defaultStream     *Stream
	defaultStreamOnce sync.Once
)

// Default returns the shared process-wide stream.
func Default() *Stream {
	defaultStreamOnce.Do(func() {
		defaultStream = NewStream(nil)
	})
	return defaultStream
}

// Subscribe registers fn for events of the given execution. With no types
// the subscriber receives everything.
func (s *Stream) Subscribe(executionID string, fn Subscriber, filter ...Type) {
	sub := subscription{fn: fn}
	if len(filter) > 0 {
		sub.types = make(map[Type]bool, len(filter))
		for _, t := range filter {
			sub.types[t] = true
		}
	}
	s.mu.Lock()
	s.perExe[executionID] = append(s.perExe[executionID], sub)
	s.mu.Unlock()
}

// SubscribeAll registers a global subscriber that sees every execution.
func (s *Stream) SubscribeAll(fn Subscriber, filter ...Type) {
	sub := subscription{fn: fn}
	if len(filter) > 0 {
		sub.types = make(map[Type]bool, len(filter))
		for _, t := range filter {
			sub.types[t] = true
		}
	}
	s.mu.Lock()
	s.global = append(s.global, sub)
	s.mu.Unlock()
}

// ClearExecution drops the subscription list for an execution. The
// outermost execute calls this during cleanup so lists do not accumulate.
func (s *Stream) ClearExecution(executionID string) {
	s.mu.Lock()
	delete(s.perExe, executionID)
	s.mu.Unlock()
}

// Emit tags the event with identity from ctx and the current timestamp
// (when absent) and delivers it to matching subscribers. Subscriber
// panics are recovered and logged.
func (s *Stream) Emit(ctx context.Context, e Event) {
	id := IdentityFrom(ctx)
	if e.ExecutionID == "" {
		e.ExecutionID = id.ExecutionID
	}
	if e.SwarmID == "" {
		e.SwarmID = id.SwarmID
	}
	if e.ParentSwarmID == "" {
		e.ParentSwarmID = id.ParentSwarmID
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(TimestampLayout)
	}

	s.mu.RLock()
	subs := make([]subscription, 0, len(s.perExe[e.ExecutionID])+len(s.global))
	subs = append(subs, s.perExe[e.ExecutionID]...)
	subs = append(subs, s.global...)
	s.mu.RUnlock()

	for _, sub := range subs {
		if !sub.matches(e.Type) {
			continue
		}
		s.deliver(sub, e)
	}
}

func (s *Stream) deliver(sub subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("event subscriber panicked",
				zap.String("type", string(e.Type)),
				zap.Any("panic", r))
		}
	}()
	sub.fn(e)
}

// Collector is a subscriber that accumulates events in order, for result
// logs and transcript rendering.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Collect is the Subscriber function.
func (c *Collector) Collect(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// Events returns a copy of everything collected so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
