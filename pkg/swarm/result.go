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
	"time"

	"github.com/teradata-labs/weave/pkg/events"
)

// AgentUsage aggregates one agent's LLM consumption over an execution.
type AgentUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Requests     int     `json:"requests"`
	CostUSD      float64 `json:"cost_usd"`
}

// Result is the outcome of one swarm execution: the final content plus
// everything aggregated from the event log.
type Result struct {
	Content       string                 `json:"content"`
	Agent         string                 `json:"agent"`
	Success       bool                   `json:"success"`
	Error         string                 `json:"error,omitempty"`
	Duration      time.Duration          `json:"duration"`
	TotalCostUSD  float64                `json:"total_cost_usd"`
	TotalTokens   int                    `json:"total_tokens"`
	LLMRequests   int                    `json:"llm_requests"`
	ToolCalls     int                    `json:"tool_calls"`
	AgentsUsed    []string               `json:"agents_used"`
	PerAgentUsage map[string]*AgentUsage `json:"per_agent_usage"`
	Logs          []events.Event         `json:"-"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// aggregateUsage folds llm_api_response events into per-agent totals,
// pricing each response by its reported model.
func aggregateUsage(logs []events.Event) map[string]*AgentUsage {
	out := make(map[string]*AgentUsage)
	for i := range logs {
		e := &logs[i]
		if e.Type != events.LLMAPIResponse || e.Agent == "" {
			continue
		}
		u := out[e.Agent]
		if u == nil {
			u = &AgentUsage{}
			out[e.Agent] = u
		}
		u.Requests++
		usage, _ := e.Get("usage").(map[string]interface{})
		in := intField(usage, "input_tokens")
		outTok := intField(usage, "output_tokens")
		u.InputTokens += in
		u.OutputTokens += outTok
		u.CostUSD += CostUSD(e.GetString("model"), in, outTok)
	}
	return out
}

func perAgentUsageData(perAgent map[string]*AgentUsage) map[string]interface{} {
	out := make(map[string]interface{}, len(perAgent))
	for name, u := range perAgent {
		out[name] = map[string]interface{}{
			"input_tokens":  u.InputTokens,
			"output_tokens": u.OutputTokens,
			"requests":      u.Requests,
			"cost_usd":      u.CostUSD,
		}
	}
	return out
}

func intField(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
