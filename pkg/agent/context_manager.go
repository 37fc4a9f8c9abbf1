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
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/teradata-labs/weave/pkg/types"
)

const (
	// compressionThreshold is the context usage percentage that triggers
	// the one-shot tool-result compression.
	compressionThreshold = 60.0

	// keepRecentMessages is how many trailing messages are exempt from
	// compression.
	keepRecentMessages = 10

	truncationNotice = "\n\n[Content truncated for context management]"
)

// warnThresholds are the context usage percentages that fire
// informational events, each at most once per agent.
var warnThresholds = []int{60, 80, 90}

var systemReminderRE = regexp.MustCompile(`(?s)<system-reminder>\s*(.*?)\s*</system-reminder>`)

// rerunnableTools are read-only tools whose output can be regenerated;
// their compressed results carry a re-run hint.
var rerunnableTools = map[string]bool{
	"Read":         true,
	"Grep":         true,
	"Glob":         true,
	"Search":       true,
	"WebSearch":    true,
	"MemoryRead":   true,
	"MemorySearch": true,
}

// OrphanDetail records one pruned tool call for the reminder and event.
type OrphanDetail struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Call string `json:"call"`
}

// ContextManager owns an agent's context-window bookkeeping: ephemeral
// reminders inlined at request time but never persisted, the one-shot
// progressive compression of old tool results, orphan tool-call pruning,
// and token accounting.
type ContextManager struct {
	mu                 sync.Mutex
	ephemeral          map[int][]string
	compressionApplied bool
	thresholdHits      map[int]bool
	contextWindow      int
	counter            *TokenCounter
}

// NewContextManager creates a manager for the given context window.
func NewContextManager(contextWindow int) *ContextManager {
	return &ContextManager{
		ephemeral:     make(map[int][]string),
		thresholdHits: make(map[int]bool),
		contextWindow: contextWindow,
		counter:       GetTokenCounter(),
	}
}

// AddEphemeral attaches text to the message at index for the next
// request only. The stored conversation is never mutated.
func (cm *ContextManager) AddEphemeral(index int, text string) {
	cm.mu.Lock()
	cm.ephemeral[index] = append(cm.ephemeral[index], text)
	cm.mu.Unlock()
}

// ClearEphemeral drops all pending ephemeral content. It runs on every
// path out of an LLM call so a failed request does not leak reminders
// into the next one.
func (cm *ContextManager) ClearEphemeral() {
	cm.mu.Lock()
	cm.ephemeral = make(map[int][]string)
	cm.mu.Unlock()
}

// HasEphemeral reports whether any ephemeral content is pending.
func (cm *ContextManager) HasEphemeral() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.ephemeral) > 0
}

// PrepareForLLM returns a new message list with ephemeral strings inlined
// into their referenced messages. Elements without ephemeral content are
// the identical input values.
func (cm *ContextManager) PrepareForLLM(msgs []types.Message) []types.Message {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	for idx, extra := range cm.ephemeral {
		if idx < 0 || idx >= len(out) {
			continue
		}
		m := out[idx].Clone()
		joined := strings.Join(extra, "\n\n")
		if m.Content == "" {
			m.Content = joined
		} else {
			m.Content = m.Content + "\n\n" + joined
		}
		out[idx] = m
	}
	return out
}

// ExtractSystemReminders returns the bodies of every
// <system-reminder> block in s.
func ExtractSystemReminders(s string) []string {
	var out []string
	for _, m := range systemReminderRE.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// StripSystemReminders removes every <system-reminder> block from s.
func StripSystemReminders(s string) string {
	return strings.TrimSpace(systemReminderRE.ReplaceAllString(s, ""))
}

// CheckThresholds returns the warning thresholds newly crossed at the
// given usage percentage. Each threshold fires at most once per agent.
func (cm *ContextManager) CheckThresholds(usagePct float64) []int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	var hit []int
	for _, t := range warnThresholds {
		if usagePct >= float64(t) && !cm.thresholdHits[t] {
			cm.thresholdHits[t] = true
			hit = append(hit, t)
		}
	}
	return hit
}

// CompressionApplied reports whether the one-shot compression has run.
func (cm *ContextManager) CompressionApplied() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.compressionApplied
}

// compressionLimit buckets a message's distance from the end of the
// conversation (1-based) into a truncation budget. Zero means keep.
func compressionLimit(age int) int {
	switch {
	case age <= keepRecentMessages:
		return 0
	case age <= 20:
		return 1000
	case age <= 40:
		return 500
	case age <= 60:
		return 200
	default:
		return 100
	}
}

// CompressedResult records one truncated tool result.
type CompressedResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CompressToolResults truncates old tool-result messages by age bucket.
// Runs at most once per agent, and only at or beyond the 60% usage
// threshold. Returns the new list and the per-message details, or
// (nil, nil) when no compression happened.
func (cm *ContextManager) CompressToolResults(msgs []types.Message, usagePct float64) ([]types.Message, []CompressedResult) {
	cm.mu.Lock()
	if cm.compressionApplied || usagePct < compressionThreshold {
		cm.mu.Unlock()
		return nil, nil
	}
	cm.compressionApplied = true
	cm.mu.Unlock()

	callNames := toolCallNames(msgs)
	out := make([]types.Message, len(msgs))
	copy(out, msgs)

	var compressed []CompressedResult
	for i := range out {
		if out[i].Role != types.RoleTool {
			continue
		}
		age := len(out) - i // 1-based distance from the end
		limit := compressionLimit(age)
		if limit == 0 || len(out[i].Content) <= limit {
			continue
		}
		name := callNames[out[i].ToolCallID]
		suffix := truncationNotice
		if rerunnableTools[name] {
			suffix += fmt.Sprintf(" If you still need this content, re-run the %s tool.", name)
		}
		keep := limit - len(suffix)
		if keep < 0 {
			keep = 0
		}
		m := out[i].Clone()
		m.Content = m.Content[:keep] + suffix
		out[i] = m
		compressed = append(compressed, CompressedResult{ID: m.ToolCallID, Name: name})
	}
	if len(compressed) == 0 {
		return nil, nil
	}
	return out, compressed
}

// PruneOrphans removes tool_calls entries that have no tool-result peer.
// Assistant messages left with neither content nor tool calls are
// dropped. Returns the pruned list and details of every removed call;
// (nil, nil) when the conversation was already consistent.
func (cm *ContextManager) PruneOrphans(msgs []types.Message) ([]types.Message, []OrphanDetail) {
	resolved := make(map[string]bool)
	for i := range msgs {
		if msgs[i].Role == types.RoleTool && msgs[i].ToolCallID != "" {
			resolved[msgs[i].ToolCallID] = true
		}
	}

	var removed []OrphanDetail
	out := make([]types.Message, 0, len(msgs))
	for i := range msgs {
		m := msgs[i]
		if m.Role != types.RoleAssistant || !m.HasToolCalls() {
			out = append(out, m)
			continue
		}
		var kept []types.ToolCall
		for _, tc := range m.ToolCalls {
			if resolved[tc.ID] {
				kept = append(kept, tc)
			} else {
				removed = append(removed, OrphanDetail{ID: tc.ID, Name: tc.Name, Call: tc.String()})
			}
		}
		if len(kept) == len(m.ToolCalls) {
			out = append(out, m)
			continue
		}
		m = m.Clone()
		m.ToolCalls = kept
		if m.Content == "" && len(m.ToolCalls) == 0 && m.Thinking == "" {
			continue // fully emptied, drop the message
		}
		out = append(out, m)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	return out, removed
}

// OrphanReminder renders the ephemeral system reminder injected after
// pruning.
func OrphanReminder(removed []OrphanDetail) string {
	var b strings.Builder
	b.WriteString("<system-reminder>\nThe following tool calls were removed from the conversation:\n")
	for _, d := range removed {
		fmt.Fprintf(&b, "- %s\n", d.Call)
	}
	b.WriteString("These tools were never executed. If you still need their results, please run them again.\n</system-reminder>")
	return b.String()
}

// CumulativeInputTokens is the latest assistant message's reported input
// count; providers report it cumulatively.
func CumulativeInputTokens(msgs []types.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleAssistant && msgs[i].InputTokens > 0 {
			return msgs[i].InputTokens
		}
	}
	return 0
}

// CumulativeOutputTokens sums output counts over all assistant messages.
func CumulativeOutputTokens(msgs []types.Message) int {
	total := 0
	for i := range msgs {
		if msgs[i].Role == types.RoleAssistant {
			total += msgs[i].OutputTokens
		}
	}
	return total
}

// totalTokens prefers provider-reported counts. A restored or preloaded
// conversation carries none until the next assistant message lands, so
// the local estimator covers the gap.
func (cm *ContextManager) totalTokens(msgs []types.Message) int {
	total := CumulativeInputTokens(msgs) + CumulativeOutputTokens(msgs)
	if total == 0 && len(msgs) > 0 {
		total = cm.counter.EstimateMessages(msgs)
	}
	return total
}

// UsagePercentage is cumulative total tokens over the context window,
// rounded to two decimals. Zero when the window is unknown.
func (cm *ContextManager) UsagePercentage(msgs []types.Message) float64 {
	if cm.contextWindow <= 0 {
		return 0
	}
	pct := float64(cm.totalTokens(msgs)) / float64(cm.contextWindow) * 100
	return math.Round(pct*100) / 100
}

// TokensRemaining may be negative when the conversation has overrun.
func (cm *ContextManager) TokensRemaining(msgs []types.Message) int {
	return cm.contextWindow - cm.totalTokens(msgs)
}

// ContextState is the serializable context-manager state for snapshots.
type ContextState struct {
	Ephemeral          map[int][]string `json:"ephemeral,omitempty"`
	CompressionApplied bool             `json:"compression_applied"`
	ThresholdHits      []int            `json:"threshold_hits,omitempty"`
}

// State captures the manager for a snapshot.
func (cm *ContextManager) State() ContextState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	st := ContextState{CompressionApplied: cm.compressionApplied}
	if len(cm.ephemeral) > 0 {
		st.Ephemeral = make(map[int][]string, len(cm.ephemeral))
		for k, v := range cm.ephemeral {
			st.Ephemeral[k] = append([]string(nil), v...)
		}
	}
	for _, t := range warnThresholds {
		if cm.thresholdHits[t] {
			st.ThresholdHits = append(st.ThresholdHits, t)
		}
	}
	return st
}

// RestoreState reinstates a snapshotted manager state.
func (cm *ContextManager) RestoreState(st ContextState) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.compressionApplied = st.CompressionApplied
	cm.ephemeral = make(map[int][]string)
	for k, v := range st.Ephemeral {
		cm.ephemeral[k] = append([]string(nil), v...)
	}
	cm.thresholdHits = make(map[int]bool)
	for _, t := range st.ThresholdHits {
		cm.thresholdHits[t] = true
	}
}

// toolCallNames maps tool-call ids to tool names from the assistant
// messages that issued them.
func toolCallNames(msgs []types.Message) map[string]string {
	out := make(map[string]string)
	for i := range msgs {
		for _, tc := range msgs[i].ToolCalls {
			out[tc.ID] = tc.Name
		}
	}
	return out
}
