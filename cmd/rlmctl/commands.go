package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/rlmd/internal/httpapi"
)

func buildRootCmd() *cobra.Command {
	var baseURL string

	rootCmd := &cobra.Command{
		Use:          "rlmctl",
		Short:        "Client for the rlmd execution engine",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&baseURL, "addr", "http://localhost:8080", "Base URL of the rlmd server")

	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sandbox sessions",
	}
	sessionCmd.AddCommand(
		buildSessionCreateCmd(&baseURL),
		buildSessionExecCmd(&baseURL),
		buildSessionListCmd(&baseURL),
		buildSessionRmCmd(&baseURL),
	)

	rootCmd.AddCommand(sessionCmd, buildInferCmd(&baseURL))
	return rootCmd
}

func buildSessionCreateCmd(baseURL *string) *cobra.Command {
	var ownerTag string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new sandbox session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			resp, err := c.createSession(cmd.Context(), ownerTag)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&ownerTag, "owner", "", "Opaque tag to attribute the session to a caller")
	return cmd
}

func buildSessionExecCmd(baseURL *string) *cobra.Command {
	var timeoutMs int64
	cmd := &cobra.Command{
		Use:   "exec <session-id> <code>",
		Short: "Run code in an existing session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			resp, err := c.execute(cmd.Context(), args[0], args[1], timeoutMs)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), resp.Stdout)
			if resp.Stderr != "" {
				fmt.Fprint(cmd.ErrOrStderr(), resp.Stderr)
			}
			if resp.ErrorKind != nil {
				return fmt.Errorf("execution failed: %s", *resp.ErrorKind)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&timeoutMs, "timeout-ms", 0, "Per-call wall-clock timeout override (0 uses the server default)")
	return cmd
}

func buildSessionRmCmd(baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id>",
		Short: "Destroy a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			return c.destroySession(cmd.Context(), args[0])
		},
	}
}

func buildSessionListCmd(baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			resp, err := c.listSessions(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SESSION ID\tCREATED\tLAST USED\tEXECUTIONS")
			for _, s := range resp.Sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.CreatedAt, s.LastUsedAt, s.ExecutionCount)
			}
			return tw.Flush()
		},
	}
}

func buildInferCmd(baseURL *string) *cobra.Command {
	var (
		contextText string
		model       string
		maxDepth    int
		timeout     time.Duration
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "infer <query>",
		Short: "Submit a query to the reasoning loop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL)
			c.httpClient.Timeout = timeout
			resp, err := c.infer(cmd.Context(), httpapi.InferRequest{
				Query:    args[0],
				Context:  contextText,
				Model:    model,
				MaxDepth: maxDepth,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
			fmt.Fprintf(cmd.ErrOrStderr(), "recursion_id=%s prompt_tokens=%d completion_tokens=%d\n",
				resp.RecursionID, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			return nil
		},
	}
	cmd.Flags().StringVar(&contextText, "context", "", "Extra context to seed the root session with")
	cmd.Flags().StringVar(&model, "model", "", "Override the configured root model")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Override the configured max recursion depth (0 uses the server default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 6*time.Minute, "Client-side request timeout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	return cmd
}
