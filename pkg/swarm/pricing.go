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

import "strings"

// rate is USD per million tokens.
type rate struct {
	input  float64
	output float64
}

// modelRates maps model id prefixes to published per-million-token
// prices. Longest prefix wins. Unknown models cost zero rather than
// guessing.
var modelRates = map[string]rate{
	"claude-opus-4":     {15.00, 75.00},
	"claude-sonnet-4":   {3.00, 15.00},
	"claude-haiku-4":    {1.00, 5.00},
	"claude-3-7-sonnet": {3.00, 15.00},
	"claude-3-5-sonnet": {3.00, 15.00},
	"claude-3-5-haiku":  {0.80, 4.00},
	"claude-3-opus":     {15.00, 75.00},
	"claude-3-haiku":    {0.25, 1.25},
}

// CostUSD prices one response. Zero for unknown models.
func CostUSD(model string, inputTokens, outputTokens int) float64 {
	var best string
	for prefix := range modelRates {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return 0
	}
	r := modelRates[best]
	return float64(inputTokens)/1e6*r.input + float64(outputTokens)/1e6*r.output
}
