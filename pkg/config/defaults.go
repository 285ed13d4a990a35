package config

import (
	"os"
	"time"

	"github.com/ccollicutt/logsentry/pkg/security"
)

// Default values for configuration.
const (
	DefaultTopURLs        = 5
	DefaultWorkers        = 1
	MaxWorkers            = 256
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultRedisKeyPrefix = "logsentry:"
	DefaultRedisChannel   = "logsentry:incidents"
	DefaultRedisTTL       = 24 * time.Hour
	DefaultWebhookTimeout = 10 * time.Second
)

// Environment variable names.
const (
	EnvLogLevel   = "LOGSENTRY_LOG_LEVEL"
	EnvRedisAddr  = "LOGSENTRY_REDIS_ADDR"
	EnvSQLitePath = "LOGSENTRY_SQLITE_PATH"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			LoginPath:           security.DefaultLoginPath,
			BruteForceThreshold: security.DefaultBruteForceThreshold,
			SQLPatterns:         append([]string{}, security.DefaultSQLPatterns...),
		},
		Report: ReportConfig{
			TopURLs: DefaultTopURLs,
			Format:  ReportFormatText,
		},
		Workers: DefaultWorkers,
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Redis: RedisConfig{
			KeyPrefix: DefaultRedisKeyPrefix,
			Channel:   DefaultRedisChannel,
			TTL:       DefaultRedisTTL,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		c.Redis.Addr = addr
	}
	if path := os.Getenv(EnvSQLitePath); path != "" {
		c.Store.SQLitePath = path
	}
}
