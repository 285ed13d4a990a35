// Package logging builds the zerolog logger used by the command line.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ccollicutt/logsentry/pkg/config"
)

// New returns a logger writing to out according to cfg, plus a closer for
// the audit file. The closer is always non-nil.
func New(cfg config.LoggingConfig, out io.Writer) (zerolog.Logger, func() error, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), noop, fmt.Errorf("parsing log level: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var console io.Writer = out
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	writer := console
	closer := noop
	if cfg.AuditFile != "" {
		f, err := os.OpenFile(cfg.AuditFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G304 -- configured path
		if err != nil {
			return zerolog.Nop(), noop, fmt.Errorf("opening audit log: %w", err)
		}
		writer = zerolog.MultiLevelWriter(console, f)
		closer = f.Close
	}

	logger := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

func noop() error { return nil }
