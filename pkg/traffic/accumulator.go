// Package traffic accumulates request statistics over a stream of parsed records.
package traffic

import (
	"github.com/ccollicutt/logsentry/pkg/parser"
)

// Accumulator maintains running traffic counters.
// It is owned by a single analysis pass and is not safe for concurrent use.
type Accumulator struct {
	total   int
	clients map[string]struct{}
	methods *histogram[string]
	urls    *histogram[string]
	status  *histogram[int]
	errors  []parser.RequestRecord
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		clients: make(map[string]struct{}),
		methods: newHistogram[string](),
		urls:    newHistogram[string](),
		status:  newHistogram[int](),
	}
}

// Record folds one request into the counters.
func (a *Accumulator) Record(r parser.RequestRecord) {
	a.total++
	a.clients[r.Client] = struct{}{}
	a.methods.add(r.Method)
	a.urls.add(r.URL)
	a.status.add(r.Status)
	if r.IsError() {
		a.errors = append(a.errors, r)
	}
}

// Total returns the number of recorded requests.
func (a *Accumulator) Total() int {
	return a.total
}

// UniqueClientCount returns the number of distinct client addresses.
func (a *Accumulator) UniqueClientCount() int {
	return len(a.clients)
}

// TopMethods returns every method by descending request count.
func (a *Accumulator) TopMethods() []Bucket[string] {
	return a.methods.ranked(0)
}

// TopURLs returns the n most requested URLs. Ties keep first-seen order.
func (a *Accumulator) TopURLs(n int) []Bucket[string] {
	return a.urls.ranked(n)
}

// StatusDistribution returns status code counts ordered by code.
func (a *Accumulator) StatusDistribution() []Bucket[int] {
	return a.status.sorted()
}

// Errors returns the records with status >= 400 in input order.
func (a *Accumulator) Errors() []parser.RequestRecord {
	out := make([]parser.RequestRecord, len(a.errors))
	copy(out, a.errors)
	return out
}

// Stats is a read-only copy of the accumulator state.
type Stats struct {
	TotalRequests      int                    `json:"total_requests"`
	UniqueClients      int                    `json:"unique_clients"`
	Methods            []Bucket[string]       `json:"methods"`
	URLs               []Bucket[string]       `json:"urls"`
	StatusDistribution []Bucket[int]          `json:"status_distribution"`
	Errors             []parser.RequestRecord `json:"errors"`
}

// Snapshot copies the current state. URLs are ranked and untruncated.
func (a *Accumulator) Snapshot() Stats {
	return Stats{
		TotalRequests:      a.total,
		UniqueClients:      len(a.clients),
		Methods:            a.TopMethods(),
		URLs:               a.urls.ranked(0),
		StatusDistribution: a.StatusDistribution(),
		Errors:             a.Errors(),
	}
}

// TopURLs returns the first n ranked URLs of the snapshot.
func (s Stats) TopURLs(n int) []Bucket[string] {
	if n <= 0 || n >= len(s.URLs) {
		return s.URLs
	}
	return s.URLs[:n]
}

// StatusCount returns the number of requests with the given status.
func (s Stats) StatusCount(code int) int {
	for _, b := range s.StatusDistribution {
		if b.Key == code {
			return b.Count
		}
	}
	return 0
}
