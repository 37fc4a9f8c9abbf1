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
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultShellTimeout bounds a shell handler's runtime.
const DefaultShellTimeout = 60 * time.Second

// NewShellHandler wraps a shell command as a hook handler. The hook
// context is written to the command's stdin as JSON. Exit codes map to
// verdicts: 0 continue, 1 skip, 2 halt. Any other exit code or a timeout
// is a handler error.
func NewShellHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	return func(ctx context.Context, hc *Context) (Action, error) {
		payload, err := json.Marshal(map[string]interface{}{
			"event":       string(hc.Event),
			"agent":       hc.Agent,
			"tool_name":   hc.ToolName,
			"tool_args":   hc.ToolArgs,
			"tool_result": hc.ToolResult,
			"prompt":      hc.Prompt,
		})
		if err != nil {
			return Continue(), fmt.Errorf("encode hook context: %w", err)
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(cctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(payload)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err = cmd.Run()
		if cctx.Err() == context.DeadlineExceeded {
			return Continue(), fmt.Errorf("shell hook timed out after %s", timeout)
		}
		switch code := exitCode(err); code {
		case 0:
			return Continue(), nil
		case 1:
			return Skip(strings.TrimSpace(stdout.String())), nil
		case 2:
			return Halt(strings.TrimSpace(stderr.String())), nil
		default:
			return Continue(), fmt.Errorf("shell hook exited %d: %s", code, strings.TrimSpace(stderr.String()))
		}
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
