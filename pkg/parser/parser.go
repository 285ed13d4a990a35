package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

// MaxLineSize is the longest line a source returns. Longer lines are cut to
// this size, the remainder is discarded and the line is marked Truncated.
const MaxLineSize = 1024 * 1024

// ReaderSource implements LineSource over any io.Reader.
type ReaderSource struct {
	reader  *bufio.Reader
	name    string
	lineNum int
}

// NewReaderSource creates a LineSource reading newline-delimited text from r.
// The name is used in error messages only.
func NewReaderSource(r io.Reader, name string) *ReaderSource {
	return &ReaderSource{
		reader: bufio.NewReaderSize(r, 64*1024),
		name:   name,
	}
}

// Next returns the next line, or io.EOF once the reader is exhausted.
func (s *ReaderSource) Next(ctx context.Context) (Line, error) {
	select {
	case <-ctx.Done():
		return Line{}, ctx.Err()
	default:
	}

	text, truncated, err := s.readLine()
	if err == io.EOF {
		return Line{}, io.EOF
	}
	if err != nil {
		return Line{}, fmt.Errorf("reading %s: %w", s.name, err)
	}

	s.lineNum++
	return Line{Text: text, Num: s.lineNum, Truncated: truncated}, nil
}

// readLine reads up to the next newline, keeping at most MaxLineSize bytes.
// A final line without a newline is returned before io.EOF.
func (s *ReaderSource) readLine() (string, bool, error) {
	var buf []byte
	truncated := false
	read := false

	for {
		chunk, err := s.reader.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		if !truncated {
			if room := MaxLineSize - len(buf); len(chunk) > room && !(len(chunk) == room+1 && chunk[room] == '\n') {
				buf = append(buf, chunk[:room]...)
				truncated = true
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && read:
			return trimEOL(buf), truncated, nil
		case err != nil:
			return "", false, err
		}
		return trimEOL(buf), truncated, nil
	}
}

func trimEOL(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return string(b)
}

// Close is a no-op; the caller owns the underlying reader.
func (s *ReaderSource) Close() error {
	return nil
}

// FileSource implements LineSource for a single log file.
// The file is opened on the first call to Next so that an unreadable path is
// reported as the first error of the pass.
type FileSource struct {
	path   string
	file   *os.File
	reader *ReaderSource
}

// NewFileSource creates a LineSource that reads the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the file path being read.
func (s *FileSource) Path() string {
	return s.path
}

// Next returns the next line of the file.
// Returns io.EOF when the file has been fully read.
func (s *FileSource) Next(ctx context.Context) (Line, error) {
	if s.reader == nil {
		f, err := os.Open(s.path) // #nosec G304 -- user-provided paths are expected
		if err != nil {
			return Line{}, fmt.Errorf("opening log file %s: %w", s.path, err)
		}
		s.file = f
		s.reader = NewReaderSource(f, s.path)
	}
	return s.reader.Next(ctx)
}

// Close releases the open file, if any.
func (s *FileSource) Close() error {
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}
