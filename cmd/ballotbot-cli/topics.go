package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ballotbot-gg/ballotbot/internal/storage"
	"github.com/ballotbot-gg/ballotbot/internal/topics"
)

func newTopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Inspect the topic alias table",
	}
	cmd.AddCommand(newTopicsListCmd())
	cmd.AddCommand(newTopicsDetectCmd())
	cmd.AddCommand(newTopicsValidateCmd())
	return cmd
}

// loadTable reads the configured table without loading any other data.
func loadTable() (*topics.Table, error) {
	if cfg.Topics.Path == "" {
		return topics.DefaultTable(), nil
	}
	return topics.LoadTable(cfg.Topics.Path)
}

func newTopicsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List canonical topics and their aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable()
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd, table.Topics())
			}

			rows := make([][]string, 0, len(table.Names()))
			for _, t := range table.Topics() {
				rows = append(rows, []string{t.Name, table.Label(t.Name), strconv.Itoa(len(t.Aliases)), strings.Join(t.Aliases, ", ")})
			}
			newUI(cmd).Table([]string{"Topic", "Label", "Aliases", "Terms"}, rows)
			return nil
		},
	}
}

// DetectResult is the JSON output of topics detect.
type DetectResult struct {
	Text     string  `json:"text"`
	Topic    string  `json:"topic,omitempty"`
	Detected bool    `json:"detected"`
	Closest  string  `json:"closest,omitempty"`
	Score    float64 `json:"score"`
}

func newTopicsDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <text>",
		Short: "Show which topic a piece of text resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable()
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			res := DetectResult{Text: text}
			res.Topic, res.Detected = table.Detect(text)
			res.Closest, res.Score = table.Closest(text)

			if outputJSON {
				return printJSON(cmd, res)
			}

			ui := newUI(cmd)
			if res.Detected {
				ui.Success("%q → %s", text, res.Topic)
			} else {
				ui.Warning("No alias matched %q", text)
			}
			if res.Closest != "" {
				ui.KeyValue("Closest", fmt.Sprintf("%s (%.2f)", res.Closest, res.Score))
			}
			return nil
		},
	}
}

// ValidateResult is the JSON output of topics validate.
type ValidateResult struct {
	Conflicts     []topics.Conflict `json:"conflicts"`
	UnknownTopics string            `json:"unknown_topics,omitempty"`
}

func newTopicsValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Report aliases shared between topics and chunk topics missing from the table",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable()
			if err != nil {
				return err
			}

			res := ValidateResult{Conflicts: table.Validate()}
			chunks, err := storage.LoadTopicChunks(cfg.Data.TopicChunksPath)
			if err == nil {
				if err := table.CheckTopics(storage.SortedTopics(chunks)); err != nil {
					res.UnknownTopics = err.Error()
				}
			} else {
				logger.Debug().Err(err).Msg("Skipping chunk topic check")
			}

			if outputJSON {
				if err := printJSON(cmd, res); err != nil {
					return err
				}
			} else {
				ui := newUI(cmd)
				for _, c := range res.Conflicts {
					ui.Warning("%s", c)
				}
				if res.UnknownTopics != "" {
					ui.Warning("%s", res.UnknownTopics)
				}
				if len(res.Conflicts) == 0 && res.UnknownTopics == "" {
					ui.Success("Topic table is consistent")
				}
			}

			if strict && (len(res.Conflicts) > 0 || res.UnknownTopics != "") {
				return errors.New("topic table validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero on any finding")
	return cmd
}
