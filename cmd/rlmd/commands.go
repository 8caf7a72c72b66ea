package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rlmd",
		Short: "Recursive Language Model execution engine",
		Long: `rlmd serves the Session/Execution and Inference HTTP surfaces of a
Recursive Language Model: a reasoning loop that can execute code in a
persistent sandbox and recursively delegate sub-questions to itself at a
bounded depth.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd(), buildVersionCmd())
	return rootCmd
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the rlmd server",
		Long: `Start the rlmd server.

The server will:
1. Load configuration from the environment and, optionally, a YAML file
2. Start the Sandbox Runtime and Session Manager
3. Start the Task Coordinator's worker pool
4. Serve the Session/Execution HTTP surface , the Inference
   HTTP surface , and /metrics

Graceful shutdown is handled on SIGINT/SIGTERM: in-flight HTTP requests
drain first, then the Coordinator stops accepting new tasks and waits for
in-flight ones, then the Session Manager closes every live session.`,
		Example: `  # Start using only environment variables
  rlmd serve

  # Start with a config file as the lower-priority layer
  rlmd serve --config rlmd.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (optional; env vars win)")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "rlmd %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
