package output

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Report file names written by WriteReportFiles.
const (
	SummaryFile   = "summary_report.txt"
	SecurityFile  = "security_incidents.txt"
	ErrorsLogFile = "error_log.txt"
)

// WriteReportFiles writes the summary, security and error sections to
// separate files in dir, creating it if needed. It returns the paths written.
func WriteReportFiles(dir string, report *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	sections := []struct {
		name   string
		render func(io.Writer, *Report)
	}{
		{SummaryFile, WriteSummary},
		{SecurityFile, WriteSecurity},
		{ErrorsLogFile, WriteErrors},
	}

	paths := make([]string, 0, len(sections))
	for _, s := range sections {
		var buf bytes.Buffer
		s.render(&buf, report)

		path := filepath.Join(dir, s.name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return paths, fmt.Errorf("writing %s: %w", s.name, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}
