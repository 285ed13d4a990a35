package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
)

const ruleWidth = 70

var (
	heavyRule = strings.Repeat("=", ruleWidth)
	lightRule = strings.Repeat("-", ruleWidth)
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "logsentry: %d requests, %d unique clients, %d incidents, %d errors, %d unparsed lines\n",
		report.Summary.TotalRequests,
		report.Summary.UniqueClients,
		report.Summary.TotalIncidents,
		report.Summary.TotalErrors,
		len(report.ParseFailures))
	return err
}

// formatFull renders every section into memory and writes it in one call so
// that a failing writer is reported.
func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	var buf bytes.Buffer
	WriteSummary(&buf, report)
	fmt.Fprintln(&buf)
	WriteSecurity(&buf, report)
	fmt.Fprintln(&buf)
	WriteErrors(&buf, report)

	if f.opts.Verbose {
		fmt.Fprintln(&buf)
		writeParseFailures(&buf, report)
		fmt.Fprintln(&buf)
		writeMetadata(&buf, report)
	}

	_, err := buf.WriteTo(w)
	return err
}

func writeHeader(w io.Writer, title string) {
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, heavyRule)
	fmt.Fprintln(w)
}

func writeSubheader(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, lightRule)
}

// WriteSummary renders the traffic statistics section.
func WriteSummary(w io.Writer, report *Report) {
	s := report.Summary
	writeHeader(w, "SERVER LOG ANALYSIS SUMMARY")

	writeSubheader(w, "TRAFFIC STATISTICS")
	fmt.Fprintf(w, "Total Requests: %d\n", s.TotalRequests)
	fmt.Fprintf(w, "Unique Visitors: %d\n\n", s.UniqueClients)

	fmt.Fprintln(w, "HTTP Methods:")
	for _, b := range s.Methods {
		fmt.Fprintf(w, "  %s: %d\n", b.Key, b.Count)
	}

	fmt.Fprintln(w, "\nMost Requested URLs:")
	for _, b := range s.TopURLs {
		fmt.Fprintf(w, "  %s: %d requests\n", b.Key, b.Count)
	}

	fmt.Fprintln(w, "\nStatus Code Distribution:")
	for _, b := range s.StatusDistribution {
		fmt.Fprintf(w, "  %d: %d\n", b.Key, b.Count)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, heavyRule)
}

// WriteSecurity renders the security incidents section.
func WriteSecurity(w io.Writer, report *Report) {
	sec := report.Security
	writeHeader(w, "SECURITY INCIDENTS REPORT")
	fmt.Fprintf(w, "Total Security Incidents: %d\n\n", len(sec.Incidents))

	writeSubheader(w, "BRUTE FORCE ATTEMPTS")
	for _, c := range sec.BruteForceClients {
		fmt.Fprintf(w, "IP: %s - %d failed login attempts\n", c.Client, c.Count)
	}

	fmt.Fprintln(w)
	writeSubheader(w, "FORBIDDEN ACCESS ATTEMPTS")
	for _, inc := range sec.ForbiddenAccess {
		fmt.Fprintln(w, inc.Message)
	}

	fmt.Fprintln(w)
	writeSubheader(w, "ALL SECURITY INCIDENTS")
	for _, inc := range sec.Incidents {
		fmt.Fprintln(w, inc.Message)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, heavyRule)
}

// WriteErrors renders the HTTP errors section.
func WriteErrors(w io.Writer, report *Report) {
	writeHeader(w, "HTTP ERRORS LOG")
	fmt.Fprintf(w, "Total Errors: %d\n\n", len(report.Errors))

	for _, e := range report.Errors {
		fmt.Fprintf(w, "[%s] %s - %s %s - Status: %d\n", e.Timestamp, e.Client, e.Method, e.URL, e.Status)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, heavyRule)
}

func writeParseFailures(w io.Writer, report *Report) {
	writeSubheader(w, fmt.Sprintf("UNPARSED LINES (%d)", len(report.ParseFailures)))
	for _, pf := range report.ParseFailures {
		fmt.Fprintf(w, "  line %d: %s\n", pf.Line, pf.Reason)
	}
}

func writeMetadata(w io.Writer, report *Report) {
	m := report.Metadata
	fmt.Fprintf(w, "Run ID: %s\n", m.RunID)
	fmt.Fprintf(w, "Source: %s\n", m.Source)
	fmt.Fprintf(w, "State: %s\n", m.State)
	fmt.Fprintf(w, "Lines read: %d\n", m.LinesRead)
	fmt.Fprintf(w, "Duration: %s\n", m.Duration.Round(1e6))
}
