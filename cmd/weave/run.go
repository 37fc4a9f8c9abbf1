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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/weave/pkg/config"
	"github.com/teradata-labs/weave/pkg/events"
	"github.com/teradata-labs/weave/pkg/swarm"
	"github.com/teradata-labs/weave/pkg/workflow"
)

var runCmd = &cobra.Command{
	Use:   `run -f <config.yaml> "<prompt>"`,
	Short: "Run a swarm or workflow with a prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringP("file", "f", "", "swarm or workflow YAML file (required)")
	runCmd.Flags().Bool("transcript", false, "print the conversation transcript after the result")
	runCmd.Flags().Bool("tool-results", false, "include tool results in the transcript")
	_ = runCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	prompt := args[0]

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	file, _ := cmd.Flags().GetString("file")
	f, err := config.Load(file)
	if err != nil {
		return err
	}

	stream := events.NewStream(logger)
	var sink *events.SQLiteSink
	if path := viper.GetString("events.db"); path != "" {
		sink, err = events.NewSQLiteSink(path, logger)
		if err != nil {
			return fmt.Errorf("open events db: %w", err)
		}
		defer func() { _ = sink.Close() }()
		stream.SubscribeAll(sink.Store)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.Swarm != nil {
		return runSwarm(ctx, cmd, f.Swarm, prompt, stream, logger)
	}
	return runWorkflow(ctx, cmd, f.Workflow, prompt, stream, logger)
}

func runSwarm(ctx context.Context, cmd *cobra.Command, cfg *config.SwarmConfig, prompt string, stream *events.Stream, logger *zap.Logger) error {
	s, err := cfg.Build(ctx, swarm.WithStream(stream), swarm.WithLogger(logger))
	if err != nil {
		return err
	}

	r, err := s.Execute(ctx, prompt)
	if err != nil {
		return err
	}

	fmt.Println(r.Content)
	printStats(cmd, r.Success, r.Error, r.TotalCostUSD, r.TotalTokens, r.Duration.String())
	if wantTranscript(cmd) {
		include, _ := cmd.Flags().GetBool("tool-results")
		fmt.Println()
		fmt.Println(r.Transcript(swarm.TranscriptOptions{IncludeToolResults: include}))
	}
	if !r.Success {
		return fmt.Errorf("swarm failed: %s", r.Error)
	}
	return nil
}

func runWorkflow(ctx context.Context, cmd *cobra.Command, cfg *config.WorkflowConfig, prompt string, stream *events.Stream, logger *zap.Logger) error {
	w, err := cfg.Build(workflow.WithStream(stream), workflow.WithLogger(logger))
	if err != nil {
		return err
	}

	r, err := w.Execute(ctx, prompt)
	if err != nil {
		return err
	}

	fmt.Println(r.Content)
	printStats(cmd, r.Success, r.Error, r.TotalCostUSD, r.TotalTokens, r.Duration.String())
	if wantTranscript(cmd) {
		include, _ := cmd.Flags().GetBool("tool-results")
		fmt.Println()
		fmt.Println(swarm.Transcript(r.Logs, swarm.TranscriptOptions{IncludeToolResults: include}))
	}
	return nil
}

func wantTranscript(cmd *cobra.Command) bool {
	t, _ := cmd.Flags().GetBool("transcript")
	return t
}

func printStats(cmd *cobra.Command, success bool, errMsg string, cost float64, tokens int, duration string) {
	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "\n--\nsuccess=%v duration=%s tokens=%d cost=$%.4f\n", success, duration, tokens, cost)
	if errMsg != "" {
		fmt.Fprintf(out, "error: %s\n", errMsg)
	}
}
