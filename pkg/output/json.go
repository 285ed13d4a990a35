package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// quietReport is the single-object JSON form used in quiet mode. It carries
// the same counts as the one-line text summary.
type quietReport struct {
	Summary
	ParseFailures int    `json:"parse_failures"`
	RunID         string `json:"run_id"`
	State         string `json:"state"`
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report as indented JSON.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	var v any = report
	if f.opts.Quiet {
		v = quietReport{
			Summary:       report.Summary,
			ParseFailures: len(report.ParseFailures),
			RunID:         report.Metadata.RunID,
			State:         report.Metadata.State,
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
