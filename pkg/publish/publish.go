// Package publish pushes analysis results to Redis for dashboards and alerting.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ccollicutt/logsentry/pkg/config"
	"github.com/ccollicutt/logsentry/pkg/output"
	"github.com/ccollicutt/logsentry/pkg/security"
)

// maxRecentRuns bounds the list of recent run IDs.
const maxRecentRuns = 100

// IncidentMessage is the payload published for each incident.
type IncidentMessage struct {
	RunID    string            `json:"run_id"`
	Source   string            `json:"source"`
	Incident security.Incident `json:"incident"`
}

// Publisher writes run counters and incident messages to Redis.
type Publisher struct {
	client  *redis.Client
	prefix  string
	channel string
	ttl     time.Duration
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg config.RedisConfig) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	return &Publisher{
		client:  client,
		prefix:  cfg.KeyPrefix,
		channel: cfg.Channel,
		ttl:     cfg.TTL,
	}, nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// RunKey is the hash holding a run's summary counters.
func (p *Publisher) RunKey(runID string) string {
	return p.prefix + "run:" + runID
}

// OffendersKey is the sorted set of clients scored by incident count.
func (p *Publisher) OffendersKey() string {
	return p.prefix + "offenders"
}

// StatusKey is the hash of status code counts across runs.
func (p *Publisher) StatusKey() string {
	return p.prefix + "status"
}

// RecentRunsKey is the list of recent run IDs, newest first.
func (p *Publisher) RecentRunsKey() string {
	return p.prefix + "runs"
}

// Publish writes the report counters in one pipeline, then publishes one
// message per incident on the configured channel.
func (p *Publisher) Publish(ctx context.Context, report *output.Report) error {
	m := report.Metadata
	runKey := p.RunKey(m.RunID)

	pipe := p.client.Pipeline()

	pipe.HSet(ctx, runKey, map[string]any{
		"source":          m.Source,
		"state":           m.State,
		"analyzed_at":     m.AnalyzedAt.UTC().Format(time.RFC3339),
		"lines_read":      m.LinesRead,
		"total_requests":  report.Summary.TotalRequests,
		"unique_clients":  report.Summary.UniqueClients,
		"total_errors":    report.Summary.TotalErrors,
		"total_incidents": report.Summary.TotalIncidents,
		"parse_failures":  len(report.ParseFailures),
	})

	for _, b := range report.Summary.StatusDistribution {
		pipe.HIncrBy(ctx, p.StatusKey(), strconv.Itoa(b.Key), int64(b.Count))
	}

	for _, inc := range report.Security.Incidents {
		pipe.ZIncrBy(ctx, p.OffendersKey(), 1, inc.Client)
	}

	pipe.LPush(ctx, p.RecentRunsKey(), m.RunID)
	pipe.LTrim(ctx, p.RecentRunsKey(), 0, maxRecentRuns-1)

	if p.ttl > 0 {
		pipe.Expire(ctx, runKey, p.ttl)
		pipe.Expire(ctx, p.StatusKey(), p.ttl)
		pipe.Expire(ctx, p.OffendersKey(), p.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing counters for run %s: %w", m.RunID, err)
	}

	if p.channel == "" {
		return nil
	}

	for _, inc := range report.Security.Incidents {
		data, err := EncodeIncident(m.RunID, m.Source, inc)
		if err != nil {
			return err
		}
		if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
			return fmt.Errorf("publishing incident: %w", err)
		}
	}

	return nil
}

// EncodeIncident renders the message published for an incident.
func EncodeIncident(runID, source string, inc security.Incident) (string, error) {
	data, err := json.Marshal(IncidentMessage{RunID: runID, Source: source, Incident: inc})
	if err != nil {
		return "", fmt.Errorf("encoding incident: %w", err)
	}
	return string(data), nil
}
