package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return finish(cfg)
}

// LoadOrDefault loads path, or the defaults when path is empty.
// Environment overrides and validation apply either way.
func LoadOrDefault(ctx context.Context, path string) (*Config, error) {
	if path != "" {
		return Load(ctx, path)
	}
	return finish(DefaultConfig())
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and fills derived defaults.
func Validate(cfg *Config) error {
	if err := validateDetection(&cfg.Detection); err != nil {
		return fmt.Errorf("detection: %w", err)
	}

	if err := validateReport(&cfg.Report); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if cfg.Workers < 1 || cfg.Workers > MaxWorkers {
		return fmt.Errorf("workers: must be between 1 and %d, got %d", MaxWorkers, cfg.Workers)
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if err := validateRedis(&cfg.Redis); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateDetection(d *DetectionConfig) error {
	if d.LoginPath == "" {
		return errors.New("login_path is required")
	}
	if !strings.HasPrefix(d.LoginPath, "/") {
		return fmt.Errorf("login_path must start with '/', got %q", d.LoginPath)
	}

	if d.BruteForceThreshold < 1 {
		return fmt.Errorf("brute_force_threshold must be >= 1, got %d", d.BruteForceThreshold)
	}

	if d.MaxLoginHistory < 0 {
		return fmt.Errorf("max_login_history must be >= 0, got %d", d.MaxLoginHistory)
	}

	for i, p := range d.SQLPatterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("sql_patterns[%d] is empty", i)
		}
		d.SQLPatterns[i] = strings.ToLower(p)
	}

	return nil
}

func validateReport(r *ReportConfig) error {
	if r.TopURLs < 1 {
		return fmt.Errorf("top_urls must be >= 1, got %d", r.TopURLs)
	}

	switch r.Format {
	case ReportFormatText, ReportFormatJSON:
	case "":
		r.Format = ReportFormatText
	default:
		return fmt.Errorf("invalid format %q (must be text or json)", r.Format)
	}

	return nil
}

func validateLogging(l *LoggingConfig) error {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(l.Level)); err != nil {
		return fmt.Errorf("invalid level %q: %w", l.Level, err)
	}

	switch l.Format {
	case "console", "json":
	case "":
		l.Format = DefaultLogFormat
	default:
		return fmt.Errorf("invalid format %q (must be console or json)", l.Format)
	}

	return nil
}

func validateRedis(r *RedisConfig) error {
	if !r.Enabled() {
		return nil
	}

	if !strings.Contains(r.Addr, ":") {
		return fmt.Errorf("addr must be host:port, got %q", r.Addr)
	}

	if r.DB < 0 {
		return fmt.Errorf("db must be >= 0, got %d", r.DB)
	}

	if r.TTL < 0 {
		return fmt.Errorf("ttl must be >= 0, got %v", r.TTL)
	}

	r.Password = expandEnvVar(r.Password)

	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	// Validate URL format
	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	// Expand environment variables in token
	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
		default:
			return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnIssues
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	// Handle ${VAR} format
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}

	// Handle $VAR format (no braces)
	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		varName := s[1:]
		return os.Getenv(varName)
	}

	return s
}
