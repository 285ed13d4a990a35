package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsentry/pkg/config"
	"github.com/ccollicutt/logsentry/pkg/parser"
	"github.com/ccollicutt/logsentry/pkg/publish"
	"github.com/ccollicutt/logsentry/pkg/store"
)

// sampleLines is how many lines of the log are test-parsed.
const sampleLines = 10

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	ConfigPath string
	Verbose    bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <log-file>",
		Short: "Diagnose common setup issues",
		Long: `Diagnose common setup issues before running analysis.

This command checks:
- Config file syntax and structure
- Log file existence and accessibility
- Whether sample lines match the access log format
- Detection settings that disable or over-trigger rules
- SQLite, Redis and webhook sinks

Example:
  logsentry diagnose access.log
  logsentry diagnose -v --config logsentry.yaml access.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDiagnose(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Configuration file (optional)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, logPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	// 1. Load config
	cfg, result := checkConfig(ctx, opts.ConfigPath)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(w, results, opts)
		return nil
	}

	// 2. Check log file
	result = checkLogFile(logPath)
	results = append(results, result)

	// 3. Test-parse sample lines
	if result.Status == "ok" {
		results = append(results, checkLogFormat(ctx, logPath, opts))
	}

	// 4. Detection settings
	results = append(results, checkDetection(cfg))

	// 5. Sinks
	results = append(results, checkSinks(ctx, cfg)...)

	// 6. Webhooks
	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfig(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config",
	}

	if path == "" {
		cfg, err := config.LoadOrDefault(ctx, "")
		if err != nil {
			result.Status = "error"
			result.Message = fmt.Sprintf("Defaults rejected: %v", err)
			result.Suggests = []string{"Check LOGSENTRY_* environment variables"}
			return nil, result
		}
		result.Status = "ok"
		result.Message = "No config file, using built-in defaults"
		return cfg, result
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{"Check the file path is correct", "Omit --config to use built-in defaults"}
		return nil, result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return nil, result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return nil, result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Config file is empty"
		result.Suggests = []string{"Omit --config to use built-in defaults"}
		return nil, result
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Parsed %s (%d bytes)", path, info.Size())
	return cfg, result
}

func checkLogFile(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: fmt.Sprintf("Log File: %s", path),
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		result.Status = "error"
		result.Message = "File does not exist"
		result.Suggests = []string{"Check if the log file path is correct"}
	case err != nil:
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access file: %v", err)
		result.Suggests = []string{"Check file permissions"}
	case info.IsDir():
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		result.Suggests = []string{"logsentry analyzes one log file per run"}
	case info.Size() == 0:
		result.Status = "warning"
		result.Message = "File is empty (0 bytes)"
	default:
		result.Status = "ok"
		result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
	}
	return result
}

func checkLogFormat(ctx context.Context, path string, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Log Format",
	}

	source := parser.NewFileSource(path)
	defer source.Close()

	total, matched := 0, 0
	var sampleMatch, sampleFail string
	for total < sampleLines {
		line, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Status = "error"
			result.Message = fmt.Sprintf("Cannot read file: %v", err)
			return result
		}
		total++

		if _, err := parser.ParseLine(line); err == nil {
			matched++
			if sampleMatch == "" {
				sampleMatch = line.Text
			}
		} else if sampleFail == "" {
			sampleFail = line.Text
		}
	}

	switch {
	case matched == 0:
		result.Status = "error"
		result.Message = fmt.Sprintf("No sample lines match the access log format (0/%d)", total)
		result.Suggests = []string{
			`Expected: <client> - - [<timestamp>] "<method> <path> <protocol>" <status> <size>`,
		}
		if sampleFail != "" {
			result.Details = []string{"Sample line that didn't match:", truncate(sampleFail, 80)}
		}
	case matched < total/2:
		result.Status = "warning"
		result.Message = fmt.Sprintf("Only %d/%d sample lines match", matched, total)
		if sampleFail != "" {
			result.Details = []string{"Sample line that didn't match:", truncate(sampleFail, 80)}
		}
	default:
		result.Status = "ok"
		result.Message = fmt.Sprintf("%d/%d sample lines match", matched, total)
		if opts.Verbose && sampleMatch != "" {
			result.Details = []string{"Sample match:", truncate(sampleMatch, 80)}
		}
	}
	return result
}

func checkDetection(cfg *config.Config) DiagnosticResult {
	d := cfg.Detection
	result := DiagnosticResult{
		Check: "Detection",
		Details: []string{
			fmt.Sprintf("Login path: %s", d.LoginPath),
			fmt.Sprintf("Brute force threshold: %d", d.BruteForceThreshold),
			fmt.Sprintf("SQL patterns: %d", len(d.SQLPatterns)),
		},
	}

	warnings := []string{}
	if d.BruteForceThreshold == 1 {
		warnings = append(warnings, "brute_force_threshold is 1: every failed login raises an incident")
	}
	if len(d.SQLPatterns) == 0 {
		warnings = append(warnings, "sql_patterns is empty: SQL injection detection is disabled")
	}

	if len(warnings) > 0 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
		result.Details = append(warnings, result.Details...)
		return result
	}

	result.Status = "ok"
	result.Message = "All rules enabled"
	return result
}

func checkSinks(ctx context.Context, cfg *config.Config) []DiagnosticResult {
	results := []DiagnosticResult{}

	if cfg.Store.Enabled() {
		result := DiagnosticResult{Check: "SQLite Store"}
		s, err := store.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			result.Status = "error"
			result.Message = err.Error()
			result.Suggests = []string{"Check that the directory exists and is writable"}
		} else {
			s.Close()
			result.Status = "ok"
			result.Message = fmt.Sprintf("Opened %s", cfg.Store.SQLitePath)
		}
		results = append(results, result)
	}

	if cfg.Redis.Enabled() {
		result := DiagnosticResult{Check: "Redis"}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		p, err := publish.New(pingCtx, cfg.Redis)
		cancel()
		if err != nil {
			result.Status = "warning"
			result.Message = err.Error()
			result.Suggests = []string{"Results will not be published until Redis is reachable"}
		} else {
			p.Close()
			result.Status = "ok"
			result.Message = fmt.Sprintf("Reachable at %s", cfg.Redis.Addr)
		}
		results = append(results, result)
	}

	if cfg.Metrics.TextfilePath != "" {
		results = append(results, DiagnosticResult{
			Check:   "Metrics",
			Status:  "ok",
			Message: fmt.Sprintf("Textfile: %s", cfg.Metrics.TextfilePath),
		})
	}

	return results
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== logsentry Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		// Status icon
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before running analysis.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nSetup is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nSetup looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		// Webhooks are optional, just note they're not configured
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		result.Status = "ok"
		result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
		if wh.Token == "" {
			result.Message += " (no token)"
		}
		if opts.Verbose {
			result.Details = []string{
				fmt.Sprintf("URL: %s", wh.URL),
				fmt.Sprintf("Timeout: %s", wh.Timeout),
			}
		}
		results = append(results, result)

		// Optionally test webhook connectivity
		if opts.Verbose {
			conn := checkWebhookConnectivity(wh)
			conn.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, conn)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	// Just do a HEAD request to check if the endpoint is reachable
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = "ok"
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
