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
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/weave/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Validate a swarm or workflow file without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// runValidate builds the configured graph so topology errors surface,
// but never connects MCP servers or providers.
func runValidate(cmd *cobra.Command, args []string) error {
	f, err := config.Load(args[0])
	if err != nil {
		return err
	}

	switch {
	case f.Swarm != nil:
		cfg := *f.Swarm
		cfg.MCPServers = nil
		if _, err := cfg.Build(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("swarm %q: %d agents, ok\n", cfg.Name, len(cfg.Agents))
	case f.Workflow != nil:
		w, err := f.Workflow.Build()
		if err != nil {
			return err
		}
		fmt.Printf("workflow %q: nodes %v, ok\n", f.Workflow.Name, w.Order())
	}
	return nil
}
