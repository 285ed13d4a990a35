// Package cli provides the command-line interface for logsentry.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsentry/internal/cli/commands"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "logsentry",
		Short: "Analyze web server access logs for traffic and attacks",
		Long: `logsentry is a batch access log analyzer.

In a single pass over a log file it produces:
  - Traffic statistics (methods, top URLs, status codes, unique clients)
  - Security incidents (brute force logins, forbidden access, SQL injection probes)
  - A log of every request that ended in an HTTP error

Results can be written as text or JSON reports, saved to SQLite,
published to Redis, exported as Prometheus metrics and sent to webhooks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add subcommands
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
