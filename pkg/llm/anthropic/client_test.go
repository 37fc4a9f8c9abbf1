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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teradata-labs/weave/pkg/llm"
	"github.com/teradata-labs/weave/pkg/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-test",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestComplete(t *testing.T) {
	var captured apiRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(401)
			return
		}
		fmt.Fprint(w, `{
			"id":"msg_1","model":"claude-test","stop_reason":"tool_use",
			"content":[
				{"type":"text","text":"checking"},
				{"type":"tool_use","id":"tc1","name":"Read","input":{"file_path":"/x"}}
			],
			"usage":{"input_tokens":120,"output_tokens":30}
		}`)
	})

	resp, err := c.Complete(context.Background(), &llm.Request{
		System: "you are terse",
		Messages: []types.Message{
			{Role: types.RoleUser, Content: "hi"},
			{Role: types.RoleAssistant, Content: "", ToolCalls: []types.ToolCall{{ID: "prev", Name: "Clock"}}},
			{Role: types.RoleTool, ToolCallID: "prev", Content: "noon"},
		},
		Tools: []llm.ToolDef{{Name: "Read", Description: "read a file"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "checking" || resp.StopReason != "tool_use" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].ID != "tc1" {
		t.Fatalf("tool calls %+v", resp.ToolCalls)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.TotalTokens != 150 {
		t.Errorf("usage %+v", resp.Usage)
	}

	if captured.System != "you are terse" {
		t.Errorf("system not extracted: %q", captured.System)
	}
	// Tool message must convert to a user-role tool_result block.
	last := captured.Messages[len(captured.Messages)-1]
	if last.Role != "user" || last.Content[0].Type != "tool_result" || last.Content[0].ToolUseID != "prev" {
		t.Errorf("tool message conversion wrong: %+v", last)
	}
	// Empty tool-call arguments must serialize as {}, not null.
	assistant := captured.Messages[1]
	if assistant.Content[0].Input == nil {
		t.Error("tool_use input should be an empty object, not null")
	}
}

func TestComplete_ErrorClassification(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"Invalid API key"}}`)
	})
	_, err := c.Complete(context.Background(), &llm.Request{Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}}})
	if err == nil {
		t.Fatal("expected error")
	}
	pe, ok := err.(*llm.ProviderError)
	if !ok {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if pe.Status != 401 || pe.TypeName != "Unauthorized" || pe.Retryable() {
		t.Errorf("classification wrong: %+v", pe)
	}
}

func TestStream_AssemblesResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range []string{
			`data: {"type":"message_start","message":{"model":"claude-test","usage":{"input_tokens":50}}}`,
			`data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"let me "}}`,
			`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"look"}}`,
			`data: {"type":"content_block_stop","index":0}`,
			`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"tc9","name":"Read"}}`,
			`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"file_path\":"}}`,
			`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"/etc/hosts\"}"}}`,
			`data: {"type":"content_block_stop","index":1}`,
			`data: {"type":"message_delta","delta":{"type":"message_delta","stop_reason":"tool_use"},"usage":{"output_tokens":20}}`,
			`data: {"type":"message_stop"}`,
		} {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	})

	var chunks []llm.StreamChunk
	resp, err := c.Stream(context.Background(), &llm.Request{
		Messages: []types.Message{{Role: types.RoleUser, Content: "hi"}},
	}, func(ch llm.StreamChunk) { chunks = append(chunks, ch) })
	if err != nil {
		t.Fatal(err)
	}

	if resp.Content != "let me look" {
		t.Errorf("content = %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Arguments["file_path"] != "/etc/hosts" {
		t.Fatalf("tool call not assembled from fragments: %+v", resp.ToolCalls)
	}
	if resp.Usage.InputTokens != 50 || resp.Usage.OutputTokens != 20 {
		t.Errorf("usage %+v", resp.Usage)
	}

	// Chunk order: content..., separator at the transition, then the
	// consolidated tool_call.
	var kinds []llm.ChunkType
	for _, ch := range chunks {
		kinds = append(kinds, ch.Type)
	}
	want := []llm.ChunkType{llm.ChunkContent, llm.ChunkContent, llm.ChunkSeparator, llm.ChunkToolCall}
	if len(kinds) != len(want) {
		t.Fatalf("chunks %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("chunks %v, want %v", kinds, want)
		}
	}
}

func TestNewClient_Validation(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewClient(Config{Model: "m"}, nil); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := NewClient(Config{APIKey: "k"}, nil); err == nil {
		t.Error("expected error for missing model")
	}
}
