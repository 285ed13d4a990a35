package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsentry/pkg/config"
	"github.com/ccollicutt/logsentry/pkg/store"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	ConfigPath string
	DBPath     string
	Limit      int
	RunID      string
	Offenders  bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show analysis runs saved in the SQLite store",
		Long: `Show analysis runs saved by analyze when store.sqlite_path is set.

Without flags the most recent runs are listed. Use --run to print the
incidents of one run, or --offenders to rank clients across all runs.

Example:
  logsentry history --db runs.db
  logsentry history --db runs.db --run 3f1c...
  logsentry history -c logsentry.yaml --offenders --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runHistory(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Configuration file (reads store.sqlite_path)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path (overrides config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "Maximum rows to show")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "Show the incidents of this run")
	cmd.Flags().BoolVar(&opts.Offenders, "offenders", false, "Rank clients by incidents across all runs")

	return cmd
}

func runHistory(ctx context.Context, w io.Writer, opts *HistoryOptions) error {
	if opts.Limit < 1 {
		return fmt.Errorf("limit must be >= 1, got %d", opts.Limit)
	}
	if opts.RunID != "" && opts.Offenders {
		return errors.New("--run and --offenders cannot be combined")
	}

	path := opts.DBPath
	if path == "" {
		cfg, err := config.LoadOrDefault(ctx, opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		path = cfg.Store.SQLitePath
	}
	if path == "" {
		return errors.New("no store configured: set store.sqlite_path or pass --db")
	}

	s, err := store.Open(ctx, path)
	if err != nil {
		return err
	}
	defer s.Close()

	switch {
	case opts.RunID != "":
		return printRunIncidents(ctx, w, s, opts.RunID)
	case opts.Offenders:
		return printOffenders(ctx, w, s, opts.Limit)
	default:
		return printRuns(ctx, w, s, opts.Limit)
	}
}

func printRuns(ctx context.Context, w io.Writer, s *store.Store, limit int) error {
	runs, err := s.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-9s  %8s  %9s  %6s  %s\n",
		"RUN ID", "ANALYZED AT", "STATE", "REQUESTS", "INCIDENTS", "ERRORS", "SOURCE")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-20s  %-9s  %8d  %9d  %6d  %s\n",
			r.RunID, r.AnalyzedAt.UTC().Format("2006-01-02T15:04:05Z"), r.State,
			r.TotalRequests, r.Incidents, r.TotalErrors, r.Source)
	}
	return nil
}

func printRunIncidents(ctx context.Context, w io.Writer, s *store.Store, runID string) error {
	incidents, err := s.Incidents(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s: %d incident(s)\n", runID, len(incidents))
	for _, inc := range incidents {
		fmt.Fprintf(w, "  [%s] %-22s %s\n", inc.Timestamp, inc.Kind, inc.Message)
	}
	return nil
}

func printOffenders(ctx context.Context, w io.Writer, s *store.Store, limit int) error {
	offenders, err := s.TopOffenders(ctx, limit)
	if err != nil {
		return err
	}
	if len(offenders) == 0 {
		fmt.Fprintln(w, "No incidents stored.")
		return nil
	}

	fmt.Fprintf(w, "%-39s  %9s  %4s\n", "CLIENT", "INCIDENTS", "RUNS")
	for _, o := range offenders {
		fmt.Fprintf(w, "%-39s  %9d  %4d\n", o.Client, o.Incidents, o.Runs)
	}
	return nil
}
