package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/artpar/wspanel/internal/app"
	"github.com/artpar/wspanel/internal/history"
	"github.com/spf13/cobra"
)

// HistoryListOptions holds options for the history list command.
type HistoryListOptions struct {
	Search string
	Limit  int
	JSON   bool
}

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the URL history",
	}
	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryClearCommand())
	cmd.AddCommand(newHistoryPruneCommand())
	return cmd
}

func newHistoryListCommand() *cobra.Command {
	opts := &HistoryListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recently used URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				limit := opts.Limit
				if !cmd.Flags().Changed("limit") {
					limit = application.Config().History.Limit
				}
				entries, err := application.History().List(ctx, history.QueryOptions{
					Search: opts.Search,
					Limit:  limit,
				})
				if err != nil {
					return fmt.Errorf("failed to list history: %w", err)
				}
				if opts.JSON {
					return outputHistoryJSON(cmd, entries)
				}
				return outputHistoryHuman(cmd, entries)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "Only URLs containing this text")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Maximum number of entries (default history.limit)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output as JSON")

	return cmd
}

func newHistoryClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every history entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				store := application.History()
				n, err := store.Count(ctx, history.QueryOptions{})
				if err != nil {
					return fmt.Errorf("failed to count history: %w", err)
				}
				if err := store.Clear(ctx); err != nil {
					return fmt.Errorf("failed to clear history: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
				return nil
			})
		},
	}
}

func newHistoryPruneCommand() *cobra.Command {
	var opts history.PruneOptions

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old history entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.KeepLast <= 0 && opts.OlderThan <= 0 {
				return fmt.Errorf("one of --keep or --older-than is required")
			}
			return withApp(cmd, func(ctx context.Context, application *app.App) error {
				n, err := application.History().Prune(ctx, opts)
				if err != nil {
					return fmt.Errorf("failed to prune history: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", n)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&opts.KeepLast, "keep", 0, "Keep only the N most recently used entries")
	cmd.Flags().DurationVar(&opts.OlderThan, "older-than", 0, "Remove entries not used within this duration")

	return cmd
}

// withApp opens the application for a one-shot command. Automatic
// pruning is skipped so that list and clear report what is on disk.
func withApp(cmd *cobra.Command, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.History.KeepLast = 0

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application := app.New(app.WithConfig(cfg))
	defer application.Close()
	if err := application.Open(ctx); err != nil {
		return err
	}
	return fn(ctx, application)
}

func outputHistoryJSON(cmd *cobra.Command, entries []history.Entry) error {
	if entries == nil {
		entries = []history.Entry{}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

func outputHistoryHuman(cmd *cobra.Command, entries []history.Entry) error {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tUSES\tLAST USED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", e.URL, e.UseCount, e.LastUsed.Local().Format(time.DateTime))
	}
	return w.Flush()
}
