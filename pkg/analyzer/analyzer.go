package analyzer

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/logsentry/pkg/parser"
	"github.com/ccollicutt/logsentry/pkg/security"
	"github.com/ccollicutt/logsentry/pkg/traffic"
)

// DefaultTopURLs is the number of URLs kept in Result.TopURLs.
const DefaultTopURLs = 5

// batchPerWorker is the number of lines each worker parses per batch.
const batchPerWorker = 256

// Session owns all state for one pass over a log source.
// A session is single-use: once Run returns it cannot be run again.
type Session struct {
	state State

	accumulator *traffic.Accumulator
	detector    *security.Detector
	incidents   []security.Incident
	failures    []ParseFailure
	linesRead   int

	startTime time.Time
	endTime   time.Time

	// Options
	detectorOpts security.Options
	topURLs      int
	workers      int
	logger       zerolog.Logger
	observer     Observer
}

// Option configures session behavior.
type Option func(*Session)

// WithDetectorOptions configures the security rules.
func WithDetectorOptions(opts security.Options) Option {
	return func(s *Session) {
		s.detectorOpts = opts
	}
}

// WithTopURLs sets how many URLs are kept in Result.TopURLs.
func WithTopURLs(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.topURLs = n
		}
	}
}

// WithWorkers parses lines on n goroutines. Records are still applied in line order.
func WithWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger used for pass events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithObserver registers an observer for per-line events.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// New creates an idle session.
func New(opts ...Option) *Session {
	s := &Session{
		state:        StateIdle,
		accumulator:  traffic.NewAccumulator(),
		detectorOpts: security.DefaultOptions(),
		topURLs:      DefaultTopURLs,
		workers:      1,
		logger:       zerolog.Nop(),
		observer:     nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.detector = security.NewDetector(s.detectorOpts)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Run reads every line from source and returns the final snapshot.
// On a source failure the returned Result holds the partial state and the
// error is a *SourceError. The caller remains responsible for closing source.
func (s *Session) Run(ctx context.Context, source parser.LineSource) (*Result, error) {
	if s.state != StateIdle {
		return nil, ErrSessionUsed
	}

	s.state = StateRunning
	s.startTime = time.Now()
	s.logger.Info().Int("workers", s.workers).Msg("analysis started")

	var err error
	if s.workers > 1 {
		err = s.runParallel(ctx, source)
	} else {
		err = s.runSequential(ctx, source)
	}
	s.endTime = time.Now()

	if err != nil {
		s.state = StateFailed
		s.logger.Error().Err(err).Int("lines_read", s.linesRead).Msg("analysis failed")
		return s.Result(), err
	}

	s.state = StateCompleted
	s.logger.Info().
		Int("lines_read", s.linesRead).
		Int("requests", s.accumulator.Total()).
		Int("incidents", len(s.incidents)).
		Int("parse_failures", len(s.failures)).
		Dur("duration", s.endTime.Sub(s.startTime)).
		Msg("analysis completed")
	return s.Result(), nil
}

// Result returns a snapshot of the current state.
func (s *Session) Result() *Result {
	stats := s.accumulator.Snapshot()
	return &Result{
		Traffic:           stats,
		TopURLs:           stats.TopURLs(s.topURLs),
		Incidents:         append([]security.Incident(nil), s.incidents...),
		BruteForceClients: s.detector.BruteForceClients(),
		ParseFailures:     append([]ParseFailure(nil), s.failures...),
		LinesRead:         s.linesRead,
		State:             s.state,
		StartTime:         s.startTime,
		EndTime:           s.endTime,
	}
}

// BruteForceThreshold returns the threshold the session's detector uses.
func (s *Session) BruteForceThreshold() int {
	if s.detectorOpts.BruteForceThreshold > 0 {
		return s.detectorOpts.BruteForceThreshold
	}
	return security.DefaultBruteForceThreshold
}

func (s *Session) runSequential(ctx context.Context, source parser.LineSource) error {
	for {
		line, err := s.read(ctx, source)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		rec, perr := parser.ParseLine(line)
		s.apply(line, rec, perr)
	}
}

type parsedLine struct {
	rec parser.RequestRecord
	err error
}

// runParallel reads lines in batches, parses each batch concurrently, then
// applies the results on this goroutine in line order.
func (s *Session) runParallel(ctx context.Context, source parser.LineSource) error {
	size := s.workers * batchPerWorker
	batch := make([]parser.Line, 0, size)
	parsed := make([]parsedLine, size)

	for {
		batch = batch[:0]
		var readErr error
		for len(batch) < size {
			line, err := s.read(ctx, source)
			if err != nil {
				readErr = err
				break
			}
			batch = append(batch, line)
		}

		if len(batch) > 0 {
			s.parseBatch(batch, parsed)
			for i, line := range batch {
				s.apply(line, parsed[i].rec, parsed[i].err)
			}
		}

		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

func (s *Session) parseBatch(batch []parser.Line, out []parsedLine) {
	var g errgroup.Group
	for w := 0; w < s.workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < len(batch); i += s.workers {
				rec, err := parser.ParseLine(batch[i])
				out[i] = parsedLine{rec: rec, err: err}
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
}

// read returns the next line, io.EOF at the end, or a *SourceError.
func (s *Session) read(ctx context.Context, source parser.LineSource) (parser.Line, error) {
	if err := ctx.Err(); err != nil {
		return parser.Line{}, newSourceError(s.linesRead, err)
	}

	line, err := source.Next(ctx)
	if errors.Is(err, io.EOF) {
		return parser.Line{}, io.EOF
	}
	if err != nil {
		return parser.Line{}, newSourceError(s.linesRead, err)
	}
	s.linesRead++
	return line, nil
}

func (s *Session) apply(line parser.Line, rec parser.RequestRecord, err error) {
	if err != nil {
		failure := ParseFailure{Line: line.Num, Reason: err.Error()}
		s.failures = append(s.failures, failure)
		s.logger.Debug().Int("line", line.Num).Str("reason", failure.Reason).Msg("skipping unparseable line")
		s.observer.LineRejected(failure)
		return
	}

	s.accumulator.Record(rec)
	s.observer.LineParsed(rec)

	for _, incident := range s.detector.Inspect(rec) {
		s.incidents = append(s.incidents, incident)
		s.logger.Warn().
			Str("kind", string(incident.Kind)).
			Str("client", incident.Client).
			Str("url", incident.URL).
			Int("line", line.Num).
			Msg(incident.Message)
		s.observer.IncidentRaised(incident)
	}
}
