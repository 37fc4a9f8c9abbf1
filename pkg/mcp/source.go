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

// Package mcp connects external Model Context Protocol servers and
// bridges their tools into the tool registry. Two startup modes exist:
// discovery lists every tool with its real schema during connect, and
// optimized registers a declared tool list immediately with stub schemas
// loaded lazily on first use.
package mcp

import (
	"context"
	"fmt"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/shuttle"
)

// DefaultCallTimeout bounds one bridged tool call.
const DefaultCallTimeout = 60 * time.Second

// ServerConfig describes one MCP server connection.
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // stdio, sse, streamable-http
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`

	// Tools switches to optimized startup: the named tools are bridged
	// without a ListTools round-trip, and each schema is fetched on the
	// tool's first use.
	Tools []string `yaml:"tools,omitempty"`

	// CallTimeout bounds each bridged call. Zero means the default.
	CallTimeout time.Duration `yaml:"call_timeout,omitempty"`
}

// Validate fails fast on transport misconfiguration.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("mcp server has no name")
	}
	switch c.Transport {
	case "stdio":
		if c.Command == "" {
			return fmt.Errorf("mcp server %s: stdio transport requires a command", c.Name)
		}
	case "sse", "streamable-http":
		if c.URL == "" {
			return fmt.Errorf("mcp server %s: %s transport requires a url", c.Name, c.Transport)
		}
	case "":
		return fmt.Errorf("mcp server %s has no transport", c.Name)
	default:
		return fmt.Errorf("mcp server %s: unsupported transport %q", c.Name, c.Transport)
	}
	return nil
}

func (c *ServerConfig) callTimeout() time.Duration {
	if c.CallTimeout > 0 {
		return c.CallTimeout
	}
	return DefaultCallTimeout
}

// Source is one connected MCP server and its bridged tools.
type Source struct {
	cfg    ServerConfig
	client *mcpclient.Client
	tools  []shuttle.Tool
	logger *zap.Logger
}

// Connect creates the client for cfg's transport, performs the MCP
// handshake, and bridges the server's tools.
func Connect(ctx context.Context, cfg ServerConfig, stream *events.Stream, logger *zap.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if stream == nil {
		stream = events.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := "discovery"
	if len(cfg.Tools) > 0 {
		mode = "optimized"
	}
	stream.Emit(ctx, events.Event{
		Type: events.MCPServerInitStart,
		Data: map[string]interface{}{"server": cfg.Name, "transport": cfg.Transport, "mode": mode},
	})

	client, err := createClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("mcp server %s: create client: %w", cfg.Name, err)
	}
	// SSE and streamable-http need an explicit Start; stdio auto-starts.
	if cfg.Transport != "stdio" {
		if err := client.Start(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("mcp server %s: start transport: %w", cfg.Name, err)
		}
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "weave", Version: "1.0.0"}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("mcp server %s: initialize: %w", cfg.Name, err)
	}

	s := &Source{cfg: cfg, client: client, logger: logger}
	if mode == "optimized" {
		for _, name := range cfg.Tools {
			s.tools = append(s.tools, newLazyBridgeTool(s, name))
		}
	} else {
		listed, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("mcp server %s: list tools: %w", cfg.Name, err)
		}
		for _, t := range listed.Tools {
			s.tools = append(s.tools, newBridgeTool(s, t))
		}
	}

	stream.Emit(ctx, events.Event{
		Type: events.MCPServerInitComplete,
		Data: map[string]interface{}{"server": cfg.Name, "mode": mode, "tool_count": len(s.tools)},
	})
	return s, nil
}

func createClient(cfg ServerConfig) (*mcpclient.Client, error) {
	switch cfg.Transport {
	case "stdio":
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		return mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	case "sse":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(cfg.Headers))
		}
		return mcpclient.NewSSEMCPClient(cfg.URL, opts...)
	case "streamable-http":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		return mcpclient.NewStreamableHttpClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// Name returns the configured server name.
func (s *Source) Name() string { return s.cfg.Name }

// Tools returns the bridged tools.
func (s *Source) Tools() []shuttle.Tool {
	out := make([]shuttle.Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Close shuts the underlying client down.
func (s *Source) Close() error {
	return s.client.Close()
}
