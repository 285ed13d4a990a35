// Package parser provides access-log line sources and request line parsing.
package parser

// RequestRecord is one parsed access-log line.
// Records are values: they are created once by Parse and never mutated.
type RequestRecord struct {
	// Client is the remote address as written in the log.
	Client string `json:"client"`

	// Timestamp is the raw bracketed timestamp. It is not interpreted.
	Timestamp string `json:"timestamp"`

	// Method is the HTTP request method.
	Method string `json:"method"`

	// URL is the request path including any query string.
	URL string `json:"url"`

	// Status is the HTTP response status code.
	Status int `json:"status"`

	// Size is the response size in bytes.
	Size int64 `json:"size"`
}

// IsError reports whether the record describes a client or server error.
func (r RequestRecord) IsError() bool {
	return r.Status >= 400
}

// Line is a raw line read from a source.
type Line struct {
	// Text is the line content without the trailing newline.
	Text string

	// Num is the 1-based line number in the source.
	Num int

	// Truncated is set when the line exceeded MaxLineSize and Text holds
	// only its first MaxLineSize bytes.
	Truncated bool
}
