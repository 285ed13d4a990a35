// Package testutil holds helpers shared by package tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger creates a zerolog.Logger that writes through t.Log at debug level.
func NewTestLogger(t testing.TB) zerolog.Logger {
	w := zerolog.ConsoleWriter{Out: testWriter{t}, NoColor: true, PartsExclude: []string{zerolog.TimestampFieldName}}
	return zerolog.New(w).Level(zerolog.DebugLevel)
}

type testWriter struct {
	t testing.TB
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Helper()
	tw.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}
