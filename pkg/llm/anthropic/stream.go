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
package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/llm"
	"github.com/teradata-labs/weave/pkg/types"
)

// SSE event payloads. Only the fields the assembler needs.

type sseEvent struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Message struct {
		Model string   `json:"model"`
		Usage apiUsage `json:"usage"`
	} `json:"message"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string        `json:"type"`
		Text        string        `json:"text"`
		Thinking    string        `json:"thinking"`
		PartialJSON string        `json:"partial_json"`
		StopReason  string        `json:"stop_reason"`
		Citation    *apiCitation  `json:"citation"`
	} `json:"delta"`
	Usage apiUsage `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type blockState struct {
	kind     string // text, thinking, tool_use
	toolID   string
	toolName string
	jsonBuf  strings.Builder
}

// Stream performs a streaming call. Text deltas are forwarded as content
// chunks; a separator chunk marks the first content-to-tool-call
// transition; each completed tool_use block yields a consolidated
// tool_call chunk; citations, if any, arrive in one final chunk. Usage
// comes from message_start (input) and the last message_delta (output).
func (c *Client) Stream(ctx context.Context, req *llm.Request, handler llm.StreamHandler) (*llm.Response, error) {
	body, err := c.buildRequest(req, true)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.post(ctx, req, body)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(httpResp.Body)
		return nil, llm.Classify(httpResp.StatusCode, string(raw))
	}

	resp := &llm.Response{}
	blocks := make(map[int]*blockState)
	sawContent := false
	separatorSent := false

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}
		var ev sseEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Debug("anthropic: skipping malformed SSE event", zap.Error(err))
			continue
		}

		switch ev.Type {
		case "message_start":
			resp.Model = ev.Message.Model
			resp.Usage.InputTokens = ev.Message.Usage.InputTokens
			resp.Usage.CacheCreationTokens = ev.Message.Usage.CacheCreationInputTokens
			resp.Usage.CacheReadTokens = ev.Message.Usage.CacheReadInputTokens

		case "content_block_start":
			bs := &blockState{
				kind:     ev.ContentBlock.Type,
				toolID:   ev.ContentBlock.ID,
				toolName: ev.ContentBlock.Name,
			}
			blocks[ev.Index] = bs
			if bs.kind == "tool_use" && sawContent && !separatorSent {
				handler(llm.StreamChunk{Type: llm.ChunkSeparator})
				separatorSent = true
			}

		case "content_block_delta":
			bs := blocks[ev.Index]
			if bs == nil {
				continue
			}
			switch ev.Delta.Type {
			case "text_delta":
				resp.Content += ev.Delta.Text
				sawContent = true
				handler(llm.StreamChunk{Type: llm.ChunkContent, Text: ev.Delta.Text})
			case "thinking_delta":
				resp.Thinking += ev.Delta.Thinking
			case "input_json_delta":
				// Argument fragments: buffered here, never parsed by
				// consumers from content chunks.
				bs.jsonBuf.WriteString(ev.Delta.PartialJSON)
			case "citations_delta":
				if ev.Delta.Citation != nil {
					resp.Citations = append(resp.Citations, types.Citation{
						URL:       ev.Delta.Citation.URL,
						Title:     ev.Delta.Citation.Title,
						CitedText: ev.Delta.Citation.CitedText,
					})
				}
			}

		case "content_block_stop":
			bs := blocks[ev.Index]
			if bs == nil || bs.kind != "tool_use" {
				continue
			}
			args := map[string]interface{}{}
			if raw := bs.jsonBuf.String(); raw != "" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					c.logger.Warn("anthropic: tool arguments did not assemble",
						zap.String("tool", bs.toolName), zap.Error(err))
					args = map[string]interface{}{}
				}
			}
			tc := types.ToolCall{ID: bs.toolID, Name: bs.toolName, Arguments: args}
			resp.ToolCalls = append(resp.ToolCalls, tc)
			handler(llm.StreamChunk{Type: llm.ChunkToolCall, ToolCall: &tc})

		case "message_delta":
			if ev.Delta.StopReason != "" {
				resp.StopReason = ev.Delta.StopReason
			}
			if ev.Usage.OutputTokens > 0 {
				resp.Usage.OutputTokens = ev.Usage.OutputTokens
			}

		case "error":
			return nil, llm.Classify(529, ev.Error.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, llm.ClassifyTransport(err)
	}

	resp.Usage.TotalTokens = resp.Usage.InputTokens + resp.Usage.OutputTokens
	if len(resp.Citations) > 0 {
		handler(llm.StreamChunk{Type: llm.ChunkCitations, Citations: resp.Citations})
	}
	return resp, nil
}
