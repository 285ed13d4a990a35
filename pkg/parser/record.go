package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrNoMatch is returned when a line does not have the access-log shape.
	ErrNoMatch = errors.New("line does not match access log format")

	// ErrBadNumber is returned when the status or size field is not a valid integer.
	ErrBadNumber = errors.New("invalid numeric field")

	// ErrLineTooLong is returned for lines cut at MaxLineSize.
	ErrLineTooLong = errors.New("line exceeds maximum length")
)

// accessLinePattern matches the common log format prefix:
// 1.2.3.4 - - [10/Oct/2024:13:55:36 +0000] "GET /path HTTP/1.1" 200 512
// Anything after the size (referrer, user agent) is ignored.
var accessLinePattern = regexp.MustCompile(
	`^(?P<client>\S+) - - \[(?P<timestamp>[^\]]*)\] "(?P<method>\S+) (?P<url>\S+) \S+" (?P<status>\d+) (?P<size>\d+)`)

var (
	clientIdx    = accessLinePattern.SubexpIndex("client")
	timestampIdx = accessLinePattern.SubexpIndex("timestamp")
	methodIdx    = accessLinePattern.SubexpIndex("method")
	urlIdx       = accessLinePattern.SubexpIndex("url")
	statusIdx    = accessLinePattern.SubexpIndex("status")
	sizeIdx      = accessLinePattern.SubexpIndex("size")
)

// ParseError describes why a line could not be parsed.
type ParseError struct {
	// Field names the offending field, empty for structural mismatches.
	Field string

	// Value is the offending field value, if any.
	Value string

	Err error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse converts one raw access-log line into a RequestRecord.
// Surrounding whitespace is ignored. On failure the returned record is the zero
// value and the error is a *ParseError.
func Parse(line string) (RequestRecord, error) {
	matches := accessLinePattern.FindStringSubmatch(strings.TrimSpace(line))
	if matches == nil {
		return RequestRecord{}, &ParseError{Err: ErrNoMatch}
	}

	status, err := strconv.Atoi(matches[statusIdx])
	if err != nil {
		return RequestRecord{}, &ParseError{Field: "status", Value: matches[statusIdx], Err: ErrBadNumber}
	}

	size, err := strconv.ParseInt(matches[sizeIdx], 10, 64)
	if err != nil {
		return RequestRecord{}, &ParseError{Field: "size", Value: matches[sizeIdx], Err: ErrBadNumber}
	}

	return RequestRecord{
		Client:    matches[clientIdx],
		Timestamp: matches[timestampIdx],
		Method:    matches[methodIdx],
		URL:       matches[urlIdx],
		Status:    status,
		Size:      size,
	}, nil
}

// ParseLine parses a line read from a LineSource. Truncated lines are always
// rejected with ErrLineTooLong.
func ParseLine(line Line) (RequestRecord, error) {
	if line.Truncated {
		return RequestRecord{}, &ParseError{Err: ErrLineTooLong}
	}
	return Parse(line.Text)
}
