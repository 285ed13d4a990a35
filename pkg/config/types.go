// Package config provides configuration loading and validation for logsentry.
package config

import (
	"time"

	"github.com/ccollicutt/logsentry/pkg/security"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	Detection DetectionConfig `yaml:"detection"`
	Report    ReportConfig    `yaml:"report"`
	Workers   int             `yaml:"workers"`
	Logging   LoggingConfig   `yaml:"logging"`
	Store     StoreConfig     `yaml:"store,omitempty"`
	Redis     RedisConfig     `yaml:"redis,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Webhooks  []WebhookConfig `yaml:"webhooks,omitempty"`
}

// DetectionConfig tunes the security rules.
type DetectionConfig struct {
	// LoginPath is the URL whose 401 responses count as failed logins.
	LoginPath string `yaml:"login_path"`

	// BruteForceThreshold is the failed login count at which incidents are raised.
	BruteForceThreshold int `yaml:"brute_force_threshold"`

	// MaxLoginHistory caps stored failure timestamps per client. Zero keeps all.
	MaxLoginHistory int `yaml:"max_login_history,omitempty"`

	// SQLPatterns are lower-case substrings that mark a URL as an injection probe.
	SQLPatterns []string `yaml:"sql_patterns"`
}

// SecurityOptions converts the detection settings into detector options.
func (d DetectionConfig) SecurityOptions() security.Options {
	return security.Options{
		LoginPath:           d.LoginPath,
		BruteForceThreshold: d.BruteForceThreshold,
		MaxLoginHistory:     d.MaxLoginHistory,
		SQLPatterns:         append([]string{}, d.SQLPatterns...),
	}
}

// ReportFormat selects how a report is rendered.
type ReportFormat string

const (
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// ReportConfig controls report rendering.
type ReportConfig struct {
	// TopURLs is the number of URLs listed in the summary.
	TopURLs int `yaml:"top_urls"`

	// Dir, if set, receives summary, incident and error report files.
	Dir string `yaml:"dir,omitempty"`

	// Format is the stdout format: text or json.
	Format ReportFormat `yaml:"format"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is console or json.
	Format string `yaml:"format"`

	// AuditFile, if set, receives a JSON copy of every log event.
	AuditFile string `yaml:"audit_file,omitempty"`
}

// StoreConfig configures the SQLite result store.
type StoreConfig struct {
	// SQLitePath enables the store when non-empty.
	SQLitePath string `yaml:"sqlite_path,omitempty"`
}

// Enabled reports whether results should be persisted.
func (s StoreConfig) Enabled() bool {
	return s.SQLitePath != ""
}

// RedisConfig configures publishing results to Redis.
type RedisConfig struct {
	// Addr enables publishing when non-empty (host:port).
	Addr string `yaml:"addr,omitempty"`

	// Password supports ${VAR} expansion.
	Password string `yaml:"password,omitempty"`

	DB int `yaml:"db,omitempty"`

	// KeyPrefix is prepended to every key.
	KeyPrefix string `yaml:"key_prefix,omitempty"`

	// Channel receives one message per incident.
	Channel string `yaml:"channel,omitempty"`

	// TTL is applied to counter keys.
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// Enabled reports whether results should be published.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// MetricsConfig configures Prometheus metrics export.
type MetricsConfig struct {
	// TextfilePath, if set, receives metrics in the node_exporter textfile format.
	TextfilePath string `yaml:"textfile_path,omitempty"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when incidents are detected (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every analysis.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending analysis reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
