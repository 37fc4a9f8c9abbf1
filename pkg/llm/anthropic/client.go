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

// Package anthropic implements the llm.Provider interface over the
// Anthropic Messages API. The client is deliberately thin: all retry and
// recovery policy lives in the chat engine, not here.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/llm"
	"github.com/teradata-labs/weave/pkg/types"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"
	defaultMaxTokens  = 8192
	defaultTimeout    = 10 * time.Minute
)

// Tool names sent to the API must match ^[a-zA-Z0-9_-]+$.
var toolNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Config holds client settings. Empty fields fall back to environment
// variables and defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	APIVersion string
	MaxTokens  int
	Timeout    time.Duration
	Headers    map[string]string
}

func (c *Config) applyDefaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.BaseURL == "" {
		if env := os.Getenv("ANTHROPIC_BASE_URL"); env != "" {
			c.BaseURL = env
		} else {
			c.BaseURL = defaultBaseURL
		}
	}
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Client calls the Anthropic Messages API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a client. A nil logger defaults to no-op.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.applyDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: no API key configured (set ANTHROPIC_API_KEY)")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic: no model configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

func (c *Client) Name() string  { return "anthropic" }
func (c *Client) Model() string { return c.cfg.Model }

// wire structures

type apiRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []apiMessage    `json:"messages"`
	Tools       []apiTool       `json:"tools,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Thinking    *apiThinking    `json:"thinking,omitempty"`
}

type apiThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type apiMessage struct {
	Role    string        `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	Thinking  string                 `json:"thinking,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitzero"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
	Citations []apiCitation          `json:"citations,omitempty"`
}

type apiCitation struct {
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	CitedText string `json:"cited_text,omitempty"`
}

type apiTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type apiResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []contentBlock `json:"content"`
	Usage      apiUsage       `json:"usage"`
}

type apiUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// Complete performs a blocking call.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	body, err := c.buildRequest(req, false)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.post(ctx, req, body)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, llm.ClassifyTransport(err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, llm.Classify(httpResp.StatusCode, string(raw))
	}

	var ar apiResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	resp := convertResponse(&ar)
	resp.Raw = raw
	return resp, nil
}

func (c *Client) post(ctx context.Context, req *llm.Request, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	version := c.cfg.APIVersion
	if req.APIVersion != "" {
		version = req.APIVersion
	}
	httpReq.Header.Set("anthropic-version", version)
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, llm.ClassifyTransport(err)
	}
	return httpResp, nil
}

func (c *Client) buildRequest(req *llm.Request, stream bool) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	system, messages := convertMessages(req.System, req.Messages)
	ar := apiRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    messages,
		Stream:      stream,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	}
	if req.Thinking != nil {
		ar.Thinking = &apiThinking{Type: "enabled", BudgetTokens: req.Thinking.BudgetTokens}
	}
	for _, t := range req.Tools {
		schema := t.InputSchema
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: marshal schema for tool %s: %w", t.Name, err)
		}
		if schema == nil {
			raw = []byte(`{"type":"object","properties":{}}`)
		}
		ar.Tools = append(ar.Tools, apiTool{
			Name:        toolNameSanitizer.ReplaceAllString(t.Name, "_"),
			Description: t.Description,
			InputSchema: raw,
		})
	}
	return json.Marshal(ar)
}

// convertMessages extracts system-role content into the request's system
// field and folds the rest into the Messages API shape: assistant tool
// calls become tool_use blocks, tool messages become user-role
// tool_result blocks.
func convertMessages(system string, msgs []types.Message) (string, []apiMessage) {
	out := make([]apiMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case types.RoleSystem:
			if system == "" {
				system = m.Content
			} else {
				system += "\n\n" + m.Content
			}
		case types.RoleUser:
			out = append(out, apiMessage{
				Role:    "user",
				Content: []contentBlock{{Type: "text", Text: m.Content}},
			})
		case types.RoleAssistant:
			var blocks []contentBlock
			if m.Thinking != "" {
				blocks = append(blocks, contentBlock{Type: "thinking", Thinking: m.Thinking})
			}
			if m.Content != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if input == nil {
					// The API rejects null tool_use input.
					input = map[string]interface{}{}
				}
				blocks = append(blocks, contentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  toolNameSanitizer.ReplaceAllString(tc.Name, "_"),
					Input: input,
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, apiMessage{Role: "assistant", Content: blocks})
		case types.RoleTool:
			out = append(out, apiMessage{
				Role: "user",
				Content: []contentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
				}},
			})
		}
	}
	return system, out
}

func convertResponse(ar *apiResponse) *llm.Response {
	resp := &llm.Response{
		Model:      ar.Model,
		StopReason: ar.StopReason,
		Usage: types.Usage{
			InputTokens:         ar.Usage.InputTokens,
			OutputTokens:        ar.Usage.OutputTokens,
			CacheCreationTokens: ar.Usage.CacheCreationInputTokens,
			CacheReadTokens:     ar.Usage.CacheReadInputTokens,
			TotalTokens:         ar.Usage.InputTokens + ar.Usage.OutputTokens,
		},
	}
	for _, block := range ar.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
			for _, cit := range block.Citations {
				resp.Citations = append(resp.Citations, types.Citation{
					URL:       cit.URL,
					Title:     cit.Title,
					CitedText: cit.CitedText,
				})
			}
		case "thinking":
			resp.Thinking += block.Thinking
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, types.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}
	return resp
}
