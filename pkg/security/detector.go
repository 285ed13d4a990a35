package security

import (
	"github.com/ccollicutt/logsentry/pkg/parser"
)

// Default detection settings.
const (
	DefaultLoginPath           = "/login"
	DefaultBruteForceThreshold = 3
)

// DefaultSQLPatterns are the URL substrings treated as SQL injection markers.
var DefaultSQLPatterns = []string{"union", "select", "drop", "insert", "--", ";"}

// Options configures a Detector.
type Options struct {
	LoginPath           string
	BruteForceThreshold int

	// MaxLoginHistory caps stored failed-login timestamps per client.
	// Counting is unaffected. Zero means unbounded.
	MaxLoginHistory int

	SQLPatterns []string
}

// DefaultOptions returns the standard detection settings.
func DefaultOptions() Options {
	patterns := make([]string, len(DefaultSQLPatterns))
	copy(patterns, DefaultSQLPatterns)
	return Options{
		LoginPath:           DefaultLoginPath,
		BruteForceThreshold: DefaultBruteForceThreshold,
		SQLPatterns:         patterns,
	}
}

// Detector runs the security rules over records and keeps the incident log.
// It is owned by a single analysis pass and is not safe for concurrent use.
type Detector struct {
	bruteForce *BruteForceRule
	rules      []Rule
	incidents  []Incident
}

// NewDetector creates a detector. Zero-valued options fall back to defaults.
func NewDetector(opts Options) *Detector {
	def := DefaultOptions()
	if opts.LoginPath == "" {
		opts.LoginPath = def.LoginPath
	}
	if opts.BruteForceThreshold <= 0 {
		opts.BruteForceThreshold = def.BruteForceThreshold
	}
	if opts.SQLPatterns == nil {
		opts.SQLPatterns = def.SQLPatterns
	}

	bf := NewBruteForceRule(opts.LoginPath, opts.BruteForceThreshold, opts.MaxLoginHistory)
	return &Detector{
		bruteForce: bf,
		rules: []Rule{
			bf,
			ForbiddenRule{},
			NewSQLInjectionRule(opts.SQLPatterns),
		},
	}
}

// Inspect evaluates every rule against the record and returns the incidents
// raised, in rule order. The incidents are also appended to the log.
func (d *Detector) Inspect(r parser.RequestRecord) []Incident {
	var raised []Incident
	for _, rule := range d.rules {
		raised = append(raised, rule.Inspect(r)...)
	}
	d.incidents = append(d.incidents, raised...)
	return raised
}

// Incidents returns a copy of the full ordered incident log.
func (d *Detector) Incidents() []Incident {
	out := make([]Incident, len(d.incidents))
	copy(out, d.incidents)
	return out
}

// BruteForceClients returns clients at or above the brute force threshold.
func (d *Detector) BruteForceClients() []ClientFailures {
	return d.bruteForce.Offenders()
}

// FailedLogins returns the failed login count recorded for a client.
func (d *Detector) FailedLogins(client string) int {
	return d.bruteForce.Failures(client)
}

// LoginAttempts returns the stored failed login timestamps for a client.
func (d *Detector) LoginAttempts(client string) []string {
	return d.bruteForce.Attempts(client)
}
