package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ballotbot-gg/ballotbot/internal/app"
	"github.com/ballotbot-gg/ballotbot/internal/cache"
)

// cacheNames are the CLI names of the three named caches.
var cacheNames = []string{"responses", "summaries", "stances"}

func namedCache(a *app.App, name string) (*cache.Named, error) {
	switch name {
	case "responses":
		return a.ResponseData, nil
	case "summaries":
		return a.SummaryData, nil
	case "stances":
		return a.StanceData, nil
	default:
		return nil, fmt.Errorf("unknown cache %q (want one of %v)", name, cacheNames)
	}
}

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the response, summary and stance caches",
	}
	cmd.AddCommand(newCacheListCmd())
	cmd.AddCommand(newCacheShowCmd())
	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCacheWarmCmd())
	return cmd
}

func newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [cache]",
		Short: "List cache sizes, or the keys of one cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), app.WithoutCorpus())
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				named, err := namedCache(a, args[0])
				if err != nil {
					return err
				}
				keys := named.Keys()
				if outputJSON {
					return printJSON(cmd, keys)
				}
				ui := newUI(cmd)
				for _, k := range keys {
					ui.Println(k)
				}
				return nil
			}

			sizes := make(map[string]int, len(cacheNames))
			rows := make([][]string, 0, len(cacheNames))
			for _, name := range cacheNames {
				named, _ := namedCache(a, name)
				sizes[name] = named.Len()
				mode := "rw"
				if named.IsReadOnly() {
					mode = "ro"
				}
				rows = append(rows, []string{name, named.Name(), strconv.Itoa(named.Len()), mode})
			}

			if outputJSON {
				return printJSON(cmd, sizes)
			}
			newUI(cmd).Table([]string{"Cache", "Store name", "Entries", "Mode"}, rows)
			return nil
		},
	}
}

func newCacheShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <cache> <key>",
		Short: "Print one cached value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), app.WithoutCorpus())
			if err != nil {
				return err
			}
			defer a.Close()

			named, err := namedCache(a, args[0])
			if err != nil {
				return err
			}
			raw, ok := named.Get(args[1])
			if !ok {
				return fmt.Errorf("%s has no entry %q", args[0], args[1])
			}

			var v interface{}
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode %s/%s: %w", args[0], args[1], err)
			}
			return printJSON(cmd, v)
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <cache>",
		Short: "Remove every entry from a cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), app.WithoutCorpus(), app.WithWritablePrecomputed())
			if err != nil {
				return err
			}
			defer a.Close()

			named, err := namedCache(a, args[0])
			if err != nil {
				return err
			}
			n := named.Len()
			if err := named.Clear(cmd.Context()); err != nil {
				return err
			}

			if outputJSON {
				return printJSON(cmd, map[string]int{"cleared": n})
			}
			newUI(cmd).Success("Cleared %d entries from %s", n, args[0])
			return nil
		},
	}
}

// WarmResult is the JSON output of cache warm.
type WarmResult struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

func newCacheWarmCmd() *cobra.Command {
	var (
		concurrency int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "warm [topic...]",
		Short: "Route a general question per topic so answers land in the response cache",
		Long: `Warm asks "tell me about <topic>" for each topic (default: every topic
with chunks) so the generated summaries are cached before users ask.
Topics whose summaries degrade are reported and left uncached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			targets := args
			if len(targets) == 0 {
				targets = a.Chunks.Topics()
				sort.Strings(targets)
			}

			ui := newUI(cmd)
			defer ui.Close()
			bar := ui.ProgressBar("warm", int64(len(targets)))

			results := make([]WarmResult, len(targets))
			var failed atomic.Int32

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(max(concurrency, 1))
			for i, topic := range targets {
				i, topic := i, topic
				g.Go(func() error {
					defer func() {
						if bar != nil {
							bar.Increment()
						}
					}()
					results[i].Topic = topic
					resp, err := a.Router.Route(gctx, "tell me about "+topic)
					if err != nil {
						failed.Add(1)
						results[i].Error = err.Error()
						return nil
					}
					results[i].Type = resp.Type
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			ui.Close()

			if outputJSON {
				return printJSON(cmd, results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Topic, r.Type, r.Error})
			}
			ui.Table([]string{"Topic", "Result", "Error"}, rows)
			ui.Info("Response cache now holds %d entries", a.Responses.Len())
			if n := failed.Load(); n > 0 {
				return fmt.Errorf("%d of %d topics failed", n, len(targets))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "topics routed in parallel")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall timeout")
	return cmd
}
