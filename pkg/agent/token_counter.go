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
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/teradata-labs/weave/pkg/types"
)

// perMessageOverhead approximates the framing tokens each message adds.
const perMessageOverhead = 10

// TokenCounter estimates token counts with the cl100k_base encoding.
// The encoder is loaded once per process; when it is unavailable the
// counter falls back to the chars/4 heuristic.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var (
	tokenCounterOnce sync.Once
	tokenCounter     *TokenCounter
)

// GetTokenCounter returns the process-wide counter.
func GetTokenCounter() *TokenCounter {
	tokenCounterOnce.Do(func() {
		tc := &TokenCounter{}
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			tc.encoding = enc
		}
		tokenCounter = tc
	})
	return tokenCounter
}

// CountTokens estimates tokens in a string.
func (tc *TokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if tc.encoding != nil {
		return len(tc.encoding.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// EstimateMessages estimates the total tokens a message list will
// consume, including per-message framing overhead.
func (tc *TokenCounter) EstimateMessages(msgs []types.Message) int {
	total := 0
	for i := range msgs {
		total += tc.CountTokens(msgs[i].Content) + perMessageOverhead
		for _, call := range msgs[i].ToolCalls {
			total += tc.CountTokens(call.String())
		}
	}
	return total
}
