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
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/shuttle"
)

// bridgeTool adapts one remote MCP tool to the shuttle interface. Lazy
// bridges start with a permissive stub schema and fetch the real one on
// first use.
type bridgeTool struct {
	source      *Source
	name        string
	description string

	mu     sync.Mutex
	schema *shuttle.JSONSchema
	lazy   bool
	once   sync.Once
}

func newBridgeTool(s *Source, t mcpgo.Tool) *bridgeTool {
	return &bridgeTool{
		source:      s,
		name:        t.Name,
		description: t.Description,
		schema:      convertSchema(t.InputSchema),
	}
}

func newLazyBridgeTool(s *Source, name string) *bridgeTool {
	return &bridgeTool{
		source:      s,
		name:        name,
		description: fmt.Sprintf("Tool %s provided by MCP server %s.", name, s.cfg.Name),
		schema:      shuttle.NewObjectSchema("Parameters for "+name, nil, nil),
		lazy:        true,
	}
}

func (b *bridgeTool) Name() string        { return b.name }
func (b *bridgeTool) Description() string { return b.description }

func (b *bridgeTool) InputSchema() *shuttle.JSONSchema {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.schema
}

// ensureSchema upgrades a lazy stub to the server's real schema. Failure
// keeps the stub; the server still validates calls on its side.
func (b *bridgeTool) ensureSchema(ctx context.Context) {
	if !b.lazy {
		return
	}
	b.once.Do(func() {
		listed, err := b.source.client.ListTools(ctx, mcpgo.ListToolsRequest{})
		if err != nil {
			b.source.logger.Warn("mcp schema load failed",
				zap.String("server", b.source.cfg.Name),
				zap.String("tool", b.name),
				zap.Error(err))
			return
		}
		for _, t := range listed.Tools {
			if t.Name == b.name {
				b.mu.Lock()
				b.schema = convertSchema(t.InputSchema)
				if t.Description != "" {
					b.description = t.Description
				}
				b.mu.Unlock()
				return
			}
		}
		b.source.logger.Warn("mcp server does not expose declared tool",
			zap.String("server", b.source.cfg.Name),
			zap.String("tool", b.name))
	})
}

func (b *bridgeTool) Execute(ctx context.Context, params map[string]interface{}) (*shuttle.Result, error) {
	b.ensureSchema(ctx)

	cctx, cancel := context.WithTimeout(ctx, b.source.cfg.callTimeout())
	defer cancel()

	started := time.Now()
	req := mcpgo.CallToolRequest{}
	req.Params.Name = b.name
	req.Params.Arguments = params
	res, err := b.source.client.CallTool(cctx, req)
	if err != nil {
		return shuttle.NewErrorResult("MCP_CALL_FAILED",
			fmt.Sprintf("mcp server %s: %v", b.source.cfg.Name, err)), nil
	}
	text := renderContent(res.Content)
	if res.IsError {
		return shuttle.NewErrorResult("MCP_TOOL_ERROR", text), nil
	}
	out := shuttle.NewResult(text)
	out.ExecutionTimeMs = time.Since(started).Milliseconds()
	out.Metadata = map[string]interface{}{"mcp_server": b.source.cfg.Name}
	return out, nil
}

// renderContent flattens MCP content blocks into one string.
func renderContent(content []mcpgo.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := mcpgo.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
			continue
		}
		raw, err := json.Marshal(c)
		if err != nil {
			continue
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, "\n")
}

// convertSchema translates an MCP input schema into the shuttle schema
// used for local validation.
func convertSchema(in mcpgo.ToolInputSchema) *shuttle.JSONSchema {
	raw, err := json.Marshal(in)
	if err != nil {
		return shuttle.NewObjectSchema("", nil, nil)
	}
	schema, err := shuttle.FromJSON(raw)
	if err != nil {
		return shuttle.NewObjectSchema("", nil, nil)
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}
