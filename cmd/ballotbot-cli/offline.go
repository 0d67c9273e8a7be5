package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ballotbot-gg/ballotbot/internal/app"
	"github.com/ballotbot-gg/ballotbot/internal/retrieval"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

func newStanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stance",
		Short: "Offline stance classification",
	}
	cmd.AddCommand(newStanceClassifyCmd())
	return cmd
}

func newStanceClassifyCmd() *cobra.Command {
	var (
		out     string
		dryRun  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "classify <topic>",
		Short: "Classify every candidate's stance on a topic and store it in the stance cache",
		Example: `  ballotbot-cli stance classify gst
  ballotbot-cli stance classify "income tax" --out data/stances/income_tax.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := loadApp(ctx, app.WithWritablePrecomputed())
			if err != nil {
				return err
			}
			defer a.Close()

			topic := topics.NormalizeTopic(strings.Join(args, " "))
			if !a.Table.Has(topic) {
				detected, ok := a.Table.Detect(topic)
				if !ok {
					return fmt.Errorf("%w: %s", topics.ErrUnknownTopic, topic)
				}
				topic = detected
			}

			bar := NewProgressBar(-1, "classify "+topic, outputJSON)
			classifier := retrieval.NewStanceClassifier(a.Summarizer, a.Table, retrieval.StanceClassifierConfig{
				BatchSize:        cfg.Retrieval.BatchSize,
				CandidateURLBase: cfg.Retrieval.CandidateURLBase,
				Progress: func(done, total int, err error) {
					bar.SetTotal(int64(total))
					bar.Set(int64(done))
					if err != nil {
						logger.Warn().Err(err).Int("batch", done).Msg("Stance batch failed")
					}
				},
			}, logger)

			records, err := classifier.Classify(ctx, topic, a.Corpus)
			bar.Finish()
			if err != nil {
				return err
			}

			if out != "" {
				data, err := json.MarshalIndent(records, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
			}
			if !dryRun {
				if err := a.StanceData.PutJSON(ctx, topic, records); err != nil {
					return fmt.Errorf("store stances: %w", err)
				}
			}

			if outputJSON {
				return printJSON(cmd, records)
			}

			ui := newUI(cmd)
			rows := make([][]string, 0, len(records))
			counts := map[storage.Stance]int{}
			for _, r := range records {
				counts[r.Stance]++
				rows = append(rows, []string{r.Name, string(r.Stance), r.Reason})
			}
			ui.Table([]string{"Candidate", "Stance", "Reason"}, rows)
			ui.Success("%s: %d support, %d oppose, %d unclear", topic,
				counts[storage.StanceSupport], counts[storage.StanceOppose], counts[storage.StanceUnclear])
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "also write the records to this JSON file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not write the stance cache")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "overall timeout")
	return cmd
}

func newSummariesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "Offline topic summaries",
	}
	cmd.AddCommand(newSummariesBuildCmd())
	return cmd
}

// BuildResult is the JSON output of summaries build.
type BuildResult struct {
	Topic    string `json:"topic"`
	Chars    int    `json:"chars"`
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newSummariesBuildCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "build [topic...]",
		Short: "Build prose summaries for topics (default: every topic with chunks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := loadApp(ctx, app.WithoutCorpus(), app.WithWritablePrecomputed())
			if err != nil {
				return err
			}
			defer a.Close()

			targets := args
			if len(targets) == 0 {
				targets = a.Chunks.Topics()
				sort.Strings(targets)
			}

			builder := retrieval.NewTopicSummaryBuilder(a.Table, a.Chunks, a.Summarizer, a.SummaryData, logger)
			bar := NewProgressBar(int64(len(targets)), "summaries", outputJSON)

			results := make([]BuildResult, 0, len(targets))
			failed := 0
			for _, topic := range targets {
				prose, err := builder.Build(ctx, topic)
				bar.Add(1)

				res := BuildResult{Topic: topic, Chars: len(prose)}
				switch {
				case errors.Is(err, retrieval.ErrDegradedSummary):
					res.Degraded = true
				case err != nil:
					res.Error = err.Error()
					failed++
				}
				results = append(results, res)
			}
			bar.Finish()

			if outputJSON {
				return printJSON(cmd, results)
			}

			ui := newUI(cmd)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "stored"
				if r.Degraded {
					status = "degraded, not stored"
				}
				if r.Error != "" {
					status = r.Error
				}
				rows = append(rows, []string{r.Topic, strconv.Itoa(r.Chars), status})
			}
			ui.Table([]string{"Topic", "Chars", "Status"}, rows)
			if failed > 0 {
				return fmt.Errorf("%d of %d topics failed", failed, len(targets))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "overall timeout")
	return cmd
}
