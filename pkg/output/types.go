// Package output provides formatting and output generation for analysis results.
package output

import (
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/logsentry/pkg/analyzer"
	"github.com/ccollicutt/logsentry/pkg/security"
	"github.com/ccollicutt/logsentry/pkg/traffic"
)

// Report is the complete analysis output.
type Report struct {
	// Summary provides aggregate traffic statistics.
	Summary Summary `json:"summary"`

	// Security lists detected incidents.
	Security Security `json:"security"`

	// Errors lists requests answered with a 4xx or 5xx status, in log order.
	Errors []ErrorEntry `json:"errors"`

	// ParseFailures lists lines that could not be parsed.
	ParseFailures []analyzer.ParseFailure `json:"parse_failures"`

	// Metadata provides context about the analysis.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate traffic statistics.
type Summary struct {
	TotalRequests      int                      `json:"total_requests"`
	UniqueClients      int                      `json:"unique_clients"`
	Methods            []traffic.Bucket[string] `json:"methods"`
	TopURLs            []traffic.Bucket[string] `json:"top_urls"`
	StatusDistribution []traffic.Bucket[int]    `json:"status_distribution"`
	TotalErrors        int                      `json:"total_errors"`
	TotalIncidents     int                      `json:"total_incidents"`
}

// Security groups the incident log with derived views of it.
type Security struct {
	// Incidents is every incident in detection order.
	Incidents []security.Incident `json:"incidents"`

	// ForbiddenAccess is the subset of incidents for 403 responses.
	ForbiddenAccess []security.Incident `json:"forbidden_access"`

	// BruteForceClients lists clients at or above the failed login threshold.
	BruteForceClients []security.ClientFailures `json:"brute_force_clients"`
}

// ErrorEntry is one request that ended in an HTTP error.
type ErrorEntry struct {
	Client    string `json:"client"`
	Timestamp string `json:"timestamp"`
	Method    string `json:"method"`
	URL       string `json:"url"`
	Status    int    `json:"status"`
}

// Metadata provides context about the analysis run.
type Metadata struct {
	// RunID uniquely identifies this analysis run.
	RunID string `json:"run_id"`

	// Source is the log file or stream that was analyzed.
	Source string `json:"source"`

	// AnalyzedAt is when the analysis finished.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration"`

	// State is the final session state.
	State string `json:"state"`

	// LinesRead is the number of lines read from the source.
	LinesRead int `json:"lines_read"`
}

// NewReport creates a Report from a session result.
func NewReport(result *analyzer.Result, source string) *Report {
	report := &Report{
		Summary: Summary{
			TotalRequests:      result.Traffic.TotalRequests,
			UniqueClients:      result.Traffic.UniqueClients,
			Methods:            result.Traffic.Methods,
			TopURLs:            result.TopURLs,
			StatusDistribution: result.Traffic.StatusDistribution,
			TotalErrors:        len(result.Traffic.Errors),
			TotalIncidents:     len(result.Incidents),
		},
		Security: Security{
			Incidents:         result.Incidents,
			ForbiddenAccess:   result.IncidentsOf(security.KindForbiddenAccess),
			BruteForceClients: result.BruteForceClients,
		},
		Errors:        make([]ErrorEntry, 0, len(result.Traffic.Errors)),
		ParseFailures: result.ParseFailures,
		Metadata: Metadata{
			RunID:      uuid.NewString(),
			Source:     source,
			AnalyzedAt: result.EndTime,
			Duration:   result.Duration(),
			State:      result.State.String(),
			LinesRead:  result.LinesRead,
		},
	}

	for _, rec := range result.Traffic.Errors {
		report.Errors = append(report.Errors, ErrorEntry{
			Client:    rec.Client,
			Timestamp: rec.Timestamp,
			Method:    rec.Method,
			URL:       rec.URL,
			Status:    rec.Status,
		})
	}

	return report
}

// HasIssues returns true if any security incident was detected.
func (r *Report) HasIssues() bool {
	return r.Summary.TotalIncidents > 0
}
