package security

import (
	"fmt"
	"strings"

	"github.com/ccollicutt/logsentry/pkg/parser"
)

// Rule inspects one record and returns any incidents it raises.
// Rules may keep state; they are invoked sequentially in record order.
type Rule interface {
	// Kind returns the incident kind this rule emits.
	Kind() Kind

	// Inspect evaluates a record, updating rule state.
	Inspect(r parser.RequestRecord) []Incident
}

// loginHistory holds failed login attempts for one client.
type loginHistory struct {
	// timestamps keeps the most recent attempts, bounded by maxHistory if set.
	timestamps []string
	count      int
}

// BruteForceRule counts 401 responses on the login path per client.
// Once a client reaches the threshold every further failure emits again.
type BruteForceRule struct {
	loginPath  string
	threshold  int
	maxHistory int

	history map[string]*loginHistory
	order   []string
}

// NewBruteForceRule creates a brute force rule.
// maxHistory caps stored timestamps per client; zero keeps all of them.
func NewBruteForceRule(loginPath string, threshold, maxHistory int) *BruteForceRule {
	return &BruteForceRule{
		loginPath:  loginPath,
		threshold:  threshold,
		maxHistory: maxHistory,
		history:    make(map[string]*loginHistory),
	}
}

// Kind returns KindBruteForce.
func (b *BruteForceRule) Kind() Kind {
	return KindBruteForce
}

// Inspect records failed logins and emits once the threshold is reached.
func (b *BruteForceRule) Inspect(r parser.RequestRecord) []Incident {
	if r.URL != b.loginPath || r.Status != 401 {
		return nil
	}

	h, ok := b.history[r.Client]
	if !ok {
		h = &loginHistory{}
		b.history[r.Client] = h
		b.order = append(b.order, r.Client)
	}
	h.count++
	h.timestamps = append(h.timestamps, r.Timestamp)
	if b.maxHistory > 0 && len(h.timestamps) > b.maxHistory {
		h.timestamps = h.timestamps[len(h.timestamps)-b.maxHistory:]
	}

	if h.count < b.threshold {
		return nil
	}
	return []Incident{{
		Kind:      KindBruteForce,
		Message:   fmt.Sprintf("Brute force attempt from %s - %d failed attempts", r.Client, h.count),
		Client:    r.Client,
		URL:       r.URL,
		Timestamp: r.Timestamp,
		Count:     h.count,
	}}
}

// Failures returns the cumulative failed login count for a client.
func (b *BruteForceRule) Failures(client string) int {
	if h, ok := b.history[client]; ok {
		return h.count
	}
	return 0
}

// Attempts returns the stored failed login timestamps for a client.
func (b *BruteForceRule) Attempts(client string) []string {
	h, ok := b.history[client]
	if !ok {
		return nil
	}
	out := make([]string, len(h.timestamps))
	copy(out, h.timestamps)
	return out
}

// Offenders returns clients at or above the threshold in first-seen order.
func (b *BruteForceRule) Offenders() []ClientFailures {
	var out []ClientFailures
	for _, client := range b.order {
		if n := b.history[client].count; n >= b.threshold {
			out = append(out, ClientFailures{Client: client, Count: n})
		}
	}
	return out
}

// ForbiddenRule flags every 403 response.
type ForbiddenRule struct{}

// Kind returns KindForbiddenAccess.
func (ForbiddenRule) Kind() Kind {
	return KindForbiddenAccess
}

// Inspect emits an incident for status 403.
func (ForbiddenRule) Inspect(r parser.RequestRecord) []Incident {
	if r.Status != 403 {
		return nil
	}
	return []Incident{{
		Kind:      KindForbiddenAccess,
		Message:   fmt.Sprintf("Forbidden access attempt: %s -> %s", r.Client, r.URL),
		Client:    r.Client,
		URL:       r.URL,
		Timestamp: r.Timestamp,
	}}
}

// SQLInjectionRule flags URLs containing SQL keywords or comment markers.
// Matching is a case-insensitive substring test.
type SQLInjectionRule struct {
	patterns []string
}

// NewSQLInjectionRule creates a rule matching any of the given patterns.
func NewSQLInjectionRule(patterns []string) *SQLInjectionRule {
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		lowered = append(lowered, strings.ToLower(p))
	}
	return &SQLInjectionRule{patterns: lowered}
}

// Kind returns KindSQLInjectionProbe.
func (s *SQLInjectionRule) Kind() Kind {
	return KindSQLInjectionProbe
}

// Inspect emits at most one incident per record regardless of status.
func (s *SQLInjectionRule) Inspect(r parser.RequestRecord) []Incident {
	url := strings.ToLower(r.URL)
	for _, p := range s.patterns {
		if strings.Contains(url, p) {
			return []Incident{{
				Kind:      KindSQLInjectionProbe,
				Message:   fmt.Sprintf("Potential SQL injection: %s -> %s", r.Client, r.URL),
				Client:    r.Client,
				URL:       r.URL,
				Timestamp: r.Timestamp,
			}}
		}
	}
	return nil
}
