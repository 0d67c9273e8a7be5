package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ballotbot-gg/ballotbot/internal/app"
	"github.com/ballotbot-gg/ballotbot/internal/storage"
)

func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage the candidate statement corpus",
	}
	cmd.AddCommand(newCorpusImportCmd())
	cmd.AddCommand(newCorpusStatsCmd())
	return cmd
}

func newCorpusImportCmd() *cobra.Command {
	var (
		replace bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import statements from a CSV or JSON file into the database",
		Long: `Import reads statements (default: data.statements_path) and inserts them
into the configured database, which is created and migrated on demand.
Set data.corpus_source to "database" to serve the imported corpus.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			path := cfg.Data.StatementsPath
			if len(args) == 1 {
				path = args[0]
			}
			statements, err := storage.LoadStatementsFile(path)
			if err != nil {
				return err
			}

			ui := newUI(cmd)
			if dryRun {
				corpus := storage.NewCorpus(statements)
				if outputJSON {
					return printJSON(cmd, map[string]int{"statements": corpus.Len(), "candidates": len(corpus.Candidates())})
				}
				ui.Success("Dry run: would import %d statements from %d candidates", corpus.Len(), len(corpus.Candidates()))
				return nil
			}

			db, err := app.OpenDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			repo := storage.NewStatementRepository(db)

			var removed int64
			if replace {
				if removed, err = repo.DeleteAll(ctx); err != nil {
					return err
				}
			}

			bar := NewProgressBar(int64(len(statements)), "import", outputJSON)
			for i := range statements {
				if err := repo.Create(ctx, &statements[i]); err != nil {
					return fmt.Errorf("statement %d (%s): %w", i+1, statements[i].Name, err)
				}
				bar.Add(1)
			}
			bar.Finish()

			total, err := repo.Count(ctx)
			if err != nil {
				return err
			}

			logger.Info().Str("file", path).Int("imported", len(statements)).Int("total", total).Msg("Corpus imported")
			if outputJSON {
				return printJSON(cmd, map[string]int64{"imported": int64(len(statements)), "removed": removed, "total": int64(total)})
			}
			ui.Success("Imported %d statements from %s (%d in database)", len(statements), path, total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "delete existing statements first")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse the file without touching the database")
	return cmd
}

// TopicCoverage counts candidates mentioning a topic's keywords.
type TopicCoverage struct {
	Topic      string `json:"topic"`
	Candidates int    `json:"candidates"`
	Statements int    `json:"statements"`
	Chunks     int    `json:"chunks"`
}

// CorpusStats is the JSON output of corpus stats.
type CorpusStats struct {
	Statements int             `json:"statements"`
	Candidates int             `json:"candidates"`
	Topics     []TopicCoverage `json:"topics"`
}

func newCorpusStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show corpus size and per-topic coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats := corpusStats(a)
			if outputJSON {
				return printJSON(cmd, stats)
			}

			ui := newUI(cmd)
			ui.Section("Corpus")
			ui.KeyValue("Statements", stats.Statements)
			ui.KeyValue("Candidates", stats.Candidates)
			ui.Section("Coverage")
			rows := make([][]string, 0, len(stats.Topics))
			for _, t := range stats.Topics {
				rows = append(rows, []string{t.Topic, strconv.Itoa(t.Candidates), strconv.Itoa(t.Statements), strconv.Itoa(t.Chunks)})
			}
			ui.Table([]string{"Topic", "Candidates", "Statements", "Chunks"}, rows)
			return nil
		},
	}
}

func corpusStats(a *app.App) CorpusStats {
	stats := CorpusStats{
		Statements: a.Corpus.Len(),
		Candidates: len(a.Corpus.Candidates()),
	}
	for _, name := range a.Table.Names() {
		cov := TopicCoverage{Topic: name, Chunks: len(a.Chunks[name])}
		for _, n := range a.Corpus.CountMentions(a.Table.Keywords(name)) {
			if n > 0 {
				cov.Candidates++
				cov.Statements += n
			}
		}
		stats.Topics = append(stats.Topics, cov)
	}
	sort.SliceStable(stats.Topics, func(i, j int) bool {
		return stats.Topics[i].Candidates > stats.Topics[j].Candidates
	})
	return stats
}
