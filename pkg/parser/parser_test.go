package parser

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readAll(t *testing.T, source LineSource) []Line {
	t.Helper()
	ctx := context.Background()
	var lines []Line
	for {
		line, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		lines = append(lines, line)
	}
	return lines
}

func TestReaderSource_Next(t *testing.T) {
	content := "first\nsecond\n\nfourth\n"
	source := NewReaderSource(strings.NewReader(content), "test")
	defer source.Close()

	lines := readAll(t, source)

	if len(lines) != 4 {
		t.Fatalf("Got %d lines, want 4", len(lines))
	}
	if lines[0].Text != "first" || lines[0].Num != 1 {
		t.Errorf("lines[0] = %+v, want first/1", lines[0])
	}
	if lines[2].Text != "" || lines[2].Num != 3 {
		t.Errorf("lines[2] = %+v, want empty/3", lines[2])
	}
	if lines[3].Num != 4 {
		t.Errorf("lines[3].Num = %d, want 4", lines[3].Num)
	}
}

func TestReaderSource_NoTrailingNewline(t *testing.T) {
	source := NewReaderSource(strings.NewReader("a\nb"), "test")
	lines := readAll(t, source)
	if len(lines) != 2 {
		t.Errorf("Got %d lines, want 2", len(lines))
	}
}

func TestReaderSource_ContextCancellation(t *testing.T) {
	source := NewReaderSource(strings.NewReader("a\nb\n"), "test")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

func TestReaderSource_ReadError(t *testing.T) {
	readErr := errors.New("device went away")
	source := NewReaderSource(&failingReader{data: []byte("one\n"), err: readErr}, "flaky")
	ctx := context.Background()

	line, err := source.Next(ctx)
	if err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	if line.Text != "one" {
		t.Errorf("Text = %q, want %q", line.Text, "one")
	}

	_, err = source.Next(ctx)
	if !errors.Is(err, readErr) {
		t.Errorf("second Next() error = %v, want %v", err, readErr)
	}
}

func TestFileSource_Next(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "access.log")
	content := `1.2.3.4 - - [10/Oct/2024:13:55:36 +0000] "GET / HTTP/1.1" 200 512
5.6.7.8 - - [10/Oct/2024:13:55:37 +0000] "POST /login HTTP/1.1" 401 0
`
	if err := os.WriteFile(logFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	source := NewFileSource(logFile)
	defer source.Close()

	lines := readAll(t, source)
	if len(lines) != 2 {
		t.Fatalf("Got %d lines, want 2", len(lines))
	}
	if lines[1].Num != 2 {
		t.Errorf("LineNum = %d, want 2", lines[1].Num)
	}
	if source.Path() != logFile {
		t.Errorf("Path() = %q, want %q", source.Path(), logFile)
	}
}

func TestFileSource_NotFound(t *testing.T) {
	source := NewFileSource("/nonexistent/access.log")
	defer source.Close()

	_, err := source.Next(context.Background())
	if err == nil {
		t.Fatal("Next() expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Next() error = %v, want os.ErrNotExist", err)
	}
}

func TestFileSource_CloseWithoutOpen(t *testing.T) {
	source := NewFileSource("/nonexistent/access.log")
	if err := source.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestReaderSource_LongLine(t *testing.T) {
	valid := `1.2.3.4 - - [10/Oct/2024:13:55:36 +0000] "GET / HTTP/1.1" 200 512`
	content := valid + "\n" + strings.Repeat("x", 2*MaxLineSize) + "\r\n" + valid + "\n"
	source := NewReaderSource(strings.NewReader(content), "test")

	lines := readAll(t, source)
	if len(lines) != 3 {
		t.Fatalf("Got %d lines, want 3", len(lines))
	}
	if lines[0].Truncated || lines[2].Truncated {
		t.Error("short lines should not be truncated")
	}
	if !lines[1].Truncated || lines[1].Num != 2 {
		t.Errorf("lines[1] Truncated=%v Num=%d, want true/2", lines[1].Truncated, lines[1].Num)
	}
	if len(lines[1].Text) != MaxLineSize {
		t.Errorf("truncated text length = %d, want %d", len(lines[1].Text), MaxLineSize)
	}
	if lines[2].Text != valid || lines[2].Num != 3 {
		t.Errorf("lines[2] = %q/%d, want the line after the long one", lines[2].Text, lines[2].Num)
	}

	if _, err := ParseLine(lines[1]); !errors.Is(err, ErrLineTooLong) {
		t.Errorf("ParseLine() error = %v, want ErrLineTooLong", err)
	}
	if _, err := ParseLine(lines[2]); err != nil {
		t.Errorf("ParseLine() error = %v", err)
	}
}

func TestReaderSource_LineAtMaxSize(t *testing.T) {
	exact := strings.Repeat("y", MaxLineSize)
	source := NewReaderSource(strings.NewReader(exact+"\n"+exact), "test")

	lines := readAll(t, source)
	if len(lines) != 2 {
		t.Fatalf("Got %d lines, want 2", len(lines))
	}
	for i, line := range lines {
		if line.Truncated || len(line.Text) != MaxLineSize {
			t.Errorf("lines[%d] Truncated=%v len=%d, want full line", i, line.Truncated, len(line.Text))
		}
	}
}
