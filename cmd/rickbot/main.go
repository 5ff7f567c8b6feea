// Package main provides the CLI entry point for the Rickbot chat
// gateway.
//
// Rickbot serves a multi-personality chatbot API: prompts are routed
// to persona agents and answers stream back over SSE.
//
// Start the server:
//
//	rickbot serve --config rickbot.yaml
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "rickbot",
		Short:        "Rickbot - multi-personality chatbot gateway",
		Long:         "Rickbot routes chat prompts to LLM persona agents and streams answers over SSE.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}
