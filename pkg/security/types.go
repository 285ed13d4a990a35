// Package security detects suspicious request patterns in access-log records.
package security

// Kind categorizes detected incidents.
type Kind string

const (
	// KindBruteForce indicates repeated failed logins from one client.
	KindBruteForce Kind = "brute_force"

	// KindForbiddenAccess indicates a request answered with 403.
	KindForbiddenAccess Kind = "forbidden_access"

	// KindSQLInjectionProbe indicates a URL containing SQL injection markers.
	KindSQLInjectionProbe Kind = "sql_injection_probe"
)

// Kinds lists every incident kind in reporting order.
var Kinds = []Kind{KindBruteForce, KindForbiddenAccess, KindSQLInjectionProbe}

// Incident is a single detected security event.
type Incident struct {
	// Kind categorizes the incident.
	Kind Kind `json:"kind"`

	// Message is a human-readable summary.
	Message string `json:"message"`

	// Client is the offending client address.
	Client string `json:"client"`

	// URL is the requested URL, empty when not relevant.
	URL string `json:"url,omitempty"`

	// Timestamp is the raw timestamp of the triggering record.
	Timestamp string `json:"timestamp"`

	// Count is the cumulative failed login count (brute force only).
	Count int `json:"count,omitempty"`
}

// ClientFailures pairs a client with its failed login count.
type ClientFailures struct {
	Client string `json:"client"`
	Count  int    `json:"count"`
}
