// Package main provides the BallotBot CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ballotbot-gg/ballotbot/internal/app"
	"github.com/ballotbot-gg/ballotbot/internal/config"
	"github.com/ballotbot-gg/ballotbot/internal/observability"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

var (
	cfgFile    string
	outputJSON bool
	verbose    bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ballotbot-cli",
		Short: "BallotBot CLI for querying, cache maintenance and offline builds",
		Long: `BallotBot CLI runs the question router locally and maintains its data.

Use this tool to:
- Ask questions exactly as the API would answer them
- Inspect and validate the topic alias table
- List, clear and warm the response caches
- Classify candidate stances and build topic summaries offline
- Import the statement corpus into the database

All commands support --json for automation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level := cfg.Observability.LogLevel
			if verbose {
				level = "debug"
			}
			format := "console"
			if outputJSON {
				format = "json"
			}

			logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      format,
				Output:      os.Stderr,
				ServiceName: "ballotbot-cli",
			})
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	cmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newTopicsCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newStanceCmd())
	cmd.AddCommand(newSummariesCmd())
	cmd.AddCommand(newCorpusCmd())
	cmd.AddCommand(newQueriesCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadApp builds the application from the loaded config.
func loadApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	a, err := app.New(ctx, cfg, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("load ballotbot: %w", err)
	}
	return a, nil
}

func newUI(cmd *cobra.Command) *UI {
	return NewUI(cmd.OutOrStdout(), outputJSON, false)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputJSON {
				return printJSON(cmd, map[string]string{
					"version": version,
					"go":      runtime.Version(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ballotbot-cli v%s\n", version)
			return nil
		},
	}
}
