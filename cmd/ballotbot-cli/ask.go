package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ballotbot-gg/ballotbot/internal/app"
)

func newAskCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Route a question and print the answer",
		Example: `  ballotbot-cli ask "Who supports GST?"
  ballotbot-cli ask "What does Jane Doe say about housing?" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args, " ")
			spin := NewSpinner("Thinking...", outputJSON)
			spin.Start()
			start := time.Now()
			resp, err := a.Router.Route(ctx, question)
			spin.Stop()
			if err != nil {
				return fmt.Errorf("route question: %w", err)
			}

			if outputJSON {
				return printJSON(cmd, resp)
			}

			ui := newUI(cmd)
			ui.Section("Answer")
			ui.Println(resp.Payload.Text())
			ui.Section("Details")
			ui.KeyValue("Type", resp.Type)
			if resp.Topic != "" {
				ui.KeyValue("Topic", resp.Topic)
			}
			ui.KeyValue("Elapsed", FormatDuration(time.Since(start)))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall timeout")
	return cmd
}

func newQueriesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "queries",
		Short: "Show recently routed queries from the query log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), app.WithoutCorpus())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.QueryLog == nil {
				return fmt.Errorf("query log is disabled")
			}
			entries, err := a.QueryLog.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read query log: %w", err)
			}

			if outputJSON {
				return printJSON(cmd, entries)
			}

			ui := newUI(cmd)
			if len(entries) == 0 {
				ui.Info("No queries logged yet")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.Type,
					e.Topic,
					e.Query,
				})
			}
			ui.Table([]string{"Time", "Type", "Topic", "Query"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}
