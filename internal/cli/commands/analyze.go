package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsentry/internal/logging"
	"github.com/ccollicutt/logsentry/pkg/analyzer"
	"github.com/ccollicutt/logsentry/pkg/config"
	"github.com/ccollicutt/logsentry/pkg/metrics"
	"github.com/ccollicutt/logsentry/pkg/output"
	"github.com/ccollicutt/logsentry/pkg/parser"
	"github.com/ccollicutt/logsentry/pkg/publish"
	"github.com/ccollicutt/logsentry/pkg/store"
	"github.com/ccollicutt/logsentry/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// openSource opens the log to analyze; tests replace it.
var openSource = func(path string) parser.LineSource {
	return parser.NewFileSource(path)
}

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	ConfigPath  string
	Output      string
	Verbose     bool
	Quiet       bool
	ReportDir   string
	Workers     int
	MetricsFile string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <log-file>",
		Short: "Analyze an access log for traffic and security incidents",
		Long: `Analyze a web server access log in a single pass.

Reports:
  - Traffic statistics (methods, top URLs, status codes, unique clients)
  - Security incidents (brute force logins, forbidden access, SQL injection probes)
  - Requests that ended in an HTTP error

Exit codes:
  0 - No security incidents detected
  1 - Security incidents detected
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Configuration file (optional)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Include unparsed lines and run metadata")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().StringVar(&opts.ReportDir, "report-dir", "", "Write summary, incident and error reports to this directory")
	cmd.Flags().IntVar(&opts.Workers, "workers", config.DefaultWorkers, "Number of parser goroutines")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	logPath := args[0]
	ExitCode = 0
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadOrDefault(ctx, opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	applyFlagOverrides(cmd, cfg, opts)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closeLog()

	formatter, err := output.NewFormatter(string(cfg.Report.Format), output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}

	collector := metrics.New()
	session := analyzer.New(
		analyzer.WithDetectorOptions(cfg.Detection.SecurityOptions()),
		analyzer.WithTopURLs(cfg.Report.TopURLs),
		analyzer.WithWorkers(cfg.Workers),
		analyzer.WithLogger(logger.With().Str("source", logPath).Logger()),
		analyzer.WithObserver(collector),
	)

	source := openSource(logPath)
	defer source.Close()

	result, runErr := session.Run(ctx, source)
	collector.ObserveRun(result)

	if cfg.Metrics.TextfilePath != "" {
		if err := collector.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			logger.Error().Err(err).Msg("metrics export failed")
		}
	}

	if runErr != nil {
		// An interrupted pass still has the lines read before the failure.
		if errors.Is(runErr, analyzer.ErrSourceInterrupted) {
			partial := output.NewReport(result, logPath)
			if err := formatter.Format(ctx, partial, cmd.OutOrStdout()); err != nil {
				logger.Error().Err(err).Msg("formatting partial report failed")
			}
		}
		return fmt.Errorf("analysis failed: %w", runErr)
	}

	report := output.NewReport(result, logPath)

	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if cfg.Report.Dir != "" {
		paths, err := output.WriteReportFiles(cfg.Report.Dir, report)
		if err != nil {
			return fmt.Errorf("writing reports: %w", err)
		}
		for _, p := range paths {
			logger.Info().Str("path", p).Msg("report written")
		}
	}

	// Sinks never fail the analysis
	saveReport(ctx, cfg, report, logger)
	publishReport(ctx, cfg, report, logger)
	webhook.NewClient(logger).Dispatch(ctx, collectWebhooks(cfg, opts), report)

	if report.HasIssues() {
		ExitCode = 1
	}

	return nil
}

// applyFlagOverrides copies explicitly set flags over config file values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config, opts *AnalyzeOptions) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Report.Format = config.ReportFormat(opts.Output)
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("report-dir") {
		cfg.Report.Dir = opts.ReportDir
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.TextfilePath = opts.MetricsFile
	}
}

func saveReport(ctx context.Context, cfg *config.Config, report *output.Report, logger zerolog.Logger) {
	if !cfg.Store.Enabled() {
		return
	}

	s, err := store.Open(ctx, cfg.Store.SQLitePath)
	if err != nil {
		logger.Error().Err(err).Msg("result store unavailable")
		return
	}
	defer s.Close()

	if err := s.Save(ctx, report); err != nil {
		logger.Error().Err(err).Msg("saving run failed")
		return
	}
	logger.Info().Str("run_id", report.Metadata.RunID).Str("path", cfg.Store.SQLitePath).Msg("run saved")
}

func publishReport(ctx context.Context, cfg *config.Config, report *output.Report, logger zerolog.Logger) {
	if !cfg.Redis.Enabled() {
		return
	}

	p, err := publish.New(ctx, cfg.Redis)
	if err != nil {
		logger.Error().Err(err).Msg("redis unavailable")
		return
	}
	defer p.Close()

	if err := p.Publish(ctx, report); err != nil {
		logger.Error().Err(err).Msg("publishing run failed")
		return
	}
	logger.Info().Str("run_id", report.Metadata.RunID).Str("addr", cfg.Redis.Addr).Msg("run published")
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)

	// Add config file webhooks
	webhooks = append(webhooks, cfg.Webhooks...)

	// Add CLI webhook if specified
	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
