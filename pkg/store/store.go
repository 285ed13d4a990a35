// Package store persists analysis reports to SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/ccollicutt/logsentry/pkg/output"
	"github.com/ccollicutt/logsentry/pkg/security"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	analyzed_at    DATETIME NOT NULL,
	duration_ms    INTEGER NOT NULL,
	state          TEXT NOT NULL,
	lines_read     INTEGER NOT NULL,
	total_requests INTEGER NOT NULL,
	unique_clients INTEGER NOT NULL,
	total_errors   INTEGER NOT NULL,
	parse_failures INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS incidents (
	run_id    TEXT NOT NULL REFERENCES runs(run_id),
	seq       INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	message   TEXT NOT NULL,
	client    TEXT NOT NULL,
	url       TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	count     INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS http_errors (
	run_id    TEXT NOT NULL REFERENCES runs(run_id),
	seq       INTEGER NOT NULL,
	client    TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	method    TEXT NOT NULL,
	url       TEXT NOT NULL,
	status    INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS incidents_client ON incidents(client);
`

// Run is a stored analysis run.
type Run struct {
	RunID         string
	Source        string
	AnalyzedAt    time.Time
	Duration      time.Duration
	State         string
	LinesRead     int
	TotalRequests int
	UniqueClients int
	TotalErrors   int
	ParseFailures int
	Incidents     int
}

// Offender is a client ranked by incidents across all stored runs.
type Offender struct {
	Client    string
	Incidents int
	Runs      int
}

// Store is a SQLite-backed report store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a report and its incidents and HTTP errors in one transaction.
func (s *Store) Save(ctx context.Context, report *output.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	m := report.Metadata
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, source, analyzed_at, duration_ms, state, lines_read, total_requests, unique_clients, total_errors, parse_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.Source, m.AnalyzedAt.UTC(), m.Duration.Milliseconds(), m.State, m.LinesRead,
		report.Summary.TotalRequests, report.Summary.UniqueClients, len(report.Errors), len(report.ParseFailures),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", m.RunID, err)
	}

	incStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO incidents (run_id, seq, kind, message, client, url, timestamp, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing incident insert: %w", err)
	}
	defer incStmt.Close()

	for i, inc := range report.Security.Incidents {
		if _, err := incStmt.ExecContext(ctx, m.RunID, i, string(inc.Kind), inc.Message, inc.Client, inc.URL, inc.Timestamp, inc.Count); err != nil {
			return fmt.Errorf("inserting incident %d: %w", i, err)
		}
	}

	errStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO http_errors (run_id, seq, client, timestamp, method, url, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing error insert: %w", err)
	}
	defer errStmt.Close()

	for i, e := range report.Errors {
		if _, err := errStmt.ExecContext(ctx, m.RunID, i, e.Client, e.Timestamp, e.Method, e.URL, e.Status); err != nil {
			return fmt.Errorf("inserting http error %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", m.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.source, r.analyzed_at, r.duration_ms, r.state, r.lines_read,
		       r.total_requests, r.unique_clients, r.total_errors, r.parse_failures,
		       (SELECT COUNT(*) FROM incidents i WHERE i.run_id = r.run_id)
		FROM runs r
		ORDER BY r.analyzed_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMS int64
		if err := rows.Scan(&r.RunID, &r.Source, &r.AnalyzedAt, &durationMS, &r.State, &r.LinesRead,
			&r.TotalRequests, &r.UniqueClients, &r.TotalErrors, &r.ParseFailures, &r.Incidents); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Incidents returns the incidents of a run in detection order.
func (s *Store) Incidents(ctx context.Context, runID string) ([]security.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, message, client, url, timestamp, count
		FROM incidents WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying incidents: %w", err)
	}
	defer rows.Close()

	var out []security.Incident
	for rows.Next() {
		var inc security.Incident
		var kind string
		if err := rows.Scan(&kind, &inc.Message, &inc.Client, &inc.URL, &inc.Timestamp, &inc.Count); err != nil {
			return nil, fmt.Errorf("scanning incident: %w", err)
		}
		inc.Kind = security.Kind(kind)
		out = append(out, inc)
	}
	return out, rows.Err()
}

// TopOffenders ranks clients by incident count across every stored run.
func (s *Store) TopOffenders(ctx context.Context, limit int) ([]Offender, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT client, COUNT(*) AS n, COUNT(DISTINCT run_id)
		FROM incidents
		GROUP BY client
		ORDER BY n DESC, client ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying offenders: %w", err)
	}
	defer rows.Close()

	var out []Offender
	for rows.Next() {
		var o Offender
		if err := rows.Scan(&o.Client, &o.Incidents, &o.Runs); err != nil {
			return nil, fmt.Errorf("scanning offender: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
