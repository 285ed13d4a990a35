package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsentry/pkg/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a logsentry configuration file without running analysis.

Checks:
  - YAML syntax
  - Detection settings (login path, threshold, SQL patterns)
  - Report, logging and worker settings
  - Redis and webhook settings`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	d := cfg.Detection
	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Login path:        %s\n", d.LoginPath)
	fmt.Fprintf(w, "  Brute force after: %d failed logins\n", d.BruteForceThreshold)
	fmt.Fprintf(w, "  SQL patterns:      %s\n", strings.Join(d.SQLPatterns, ", "))
	fmt.Fprintf(w, "  Top URLs:          %d\n", cfg.Report.TopURLs)
	fmt.Fprintf(w, "  Workers:           %d\n", cfg.Workers)

	fmt.Fprintf(w, "\nSinks:\n")
	fmt.Fprintf(w, "  Report files: %s\n", enabledOr(cfg.Report.Dir))
	fmt.Fprintf(w, "  SQLite:       %s\n", enabledOr(cfg.Store.SQLitePath))
	fmt.Fprintf(w, "  Redis:        %s\n", enabledOr(cfg.Redis.Addr))
	fmt.Fprintf(w, "  Metrics:      %s\n", enabledOr(cfg.Metrics.TextfilePath))
	fmt.Fprintf(w, "  Webhooks:     %d\n", len(cfg.Webhooks))

	return nil
}

func enabledOr(target string) string {
	if target == "" {
		return "disabled"
	}
	return target
}
