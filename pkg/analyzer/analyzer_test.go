package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/logsentry/internal/testutil"
	"github.com/ccollicutt/logsentry/pkg/parser"
	"github.com/ccollicutt/logsentry/pkg/security"
	"github.com/ccollicutt/logsentry/pkg/traffic"
)

const scenario = `192.168.1.1 - - [10/Oct/2023:13:55:36 +0000] "GET /index.html HTTP/1.1" 200 1024
192.168.1.2 - - [10/Oct/2023:13:56:01 +0000] "POST /login HTTP/1.1" 401 512
192.168.1.2 - - [10/Oct/2023:13:56:05 +0000] "POST /login HTTP/1.1" 401 512
192.168.1.2 - - [10/Oct/2023:13:56:09 +0000] "POST /login HTTP/1.1" 401 512
192.168.1.1 - - [10/Oct/2023:13:57:12 +0000] "GET /admin HTTP/1.1" 403 256
`

// sliceSource is a LineSource over fixed lines that can fail after a given line.
type sliceSource struct {
	lines   []string
	index   int
	failAt  int // fail when this many lines were returned; -1 disables
	failErr error
}

func newSliceSource(text string) *sliceSource {
	return &sliceSource{lines: strings.Split(strings.TrimSuffix(text, "\n"), "\n"), failAt: -1}
}

func (s *sliceSource) Next(ctx context.Context) (parser.Line, error) {
	if s.failAt >= 0 && s.index == s.failAt {
		return parser.Line{}, s.failErr
	}
	if s.index >= len(s.lines) {
		return parser.Line{}, io.EOF
	}
	s.index++
	return parser.Line{Text: s.lines[s.index-1], Num: s.index}, nil
}

func (s *sliceSource) Close() error {
	return nil
}

type recordingObserver struct {
	parsed    int
	rejected  []ParseFailure
	incidents []security.Incident
}

func (o *recordingObserver) LineParsed(parser.RequestRecord) {
	o.parsed++
}

func (o *recordingObserver) LineRejected(f ParseFailure) {
	o.rejected = append(o.rejected, f)
}

func (o *recordingObserver) IncidentRaised(i security.Incident) {
	o.incidents = append(o.incidents, i)
}

func TestSession_EndToEnd(t *testing.T) {
	s := New(WithLogger(testutil.NewTestLogger(t)))
	assert.Equal(t, StateIdle, s.State())

	result, err := s.Run(context.Background(), newSliceSource(scenario))
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, s.State())
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 5, result.LinesRead)
	assert.Equal(t, 5, result.Traffic.TotalRequests)
	assert.Equal(t, 2, result.Traffic.UniqueClients)
	assert.Len(t, result.Traffic.Errors, 4)
	assert.Equal(t, []traffic.Bucket[int]{{Key: 200, Count: 1}, {Key: 401, Count: 3}, {Key: 403, Count: 1}},
		result.Traffic.StatusDistribution)
	assert.Empty(t, result.ParseFailures)

	require.Len(t, result.Incidents, 2)
	assert.Equal(t, security.KindBruteForce, result.Incidents[0].Kind)
	assert.Equal(t, "192.168.1.2", result.Incidents[0].Client)
	assert.Equal(t, 3, result.Incidents[0].Count)
	assert.Equal(t, security.KindForbiddenAccess, result.Incidents[1].Kind)
	assert.Equal(t, "/admin", result.Incidents[1].URL)

	assert.Equal(t, []security.ClientFailures{{Client: "192.168.1.2", Count: 3}}, result.BruteForceClients)
	assert.True(t, result.HasIncidents())
	assert.Len(t, result.IncidentsOf(security.KindForbiddenAccess), 1)
	assert.False(t, result.EndTime.Before(result.StartTime))
}

// Failed logins separated by other requests from the same client still count
// toward the brute force threshold.
func TestSession_InterleavedFailedLogins(t *testing.T) {
	input := `9.9.9.9 - - [t1] "POST /login HTTP/1.1" 401 0
9.9.9.9 - - [t2] "POST /login HTTP/1.1" 401 0
9.9.9.9 - - [t3] "GET /secret HTTP/1.1" 403 0
8.8.8.8 - - [t4] "GET /index.html HTTP/1.1" 200 100
9.9.9.9 - - [t5] "POST /login HTTP/1.1" 401 0
`
	result, err := New(WithLogger(testutil.NewTestLogger(t))).Run(context.Background(), newSliceSource(input))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Traffic.TotalRequests)
	assert.Equal(t, 2, result.Traffic.UniqueClients)
	assert.Equal(t, []traffic.Bucket[int]{{Key: 200, Count: 1}, {Key: 401, Count: 3}, {Key: 403, Count: 1}},
		result.Traffic.StatusDistribution)
	// Every status >= 400 is an error: three 401s and the 403.
	assert.Len(t, result.Traffic.Errors, 4)

	require.Len(t, result.Incidents, 2)
	assert.Equal(t, security.KindForbiddenAccess, result.Incidents[0].Kind)
	assert.Equal(t, "/secret", result.Incidents[0].URL)
	assert.Equal(t, security.KindBruteForce, result.Incidents[1].Kind)
	assert.Equal(t, "9.9.9.9", result.Incidents[1].Client)
	assert.Equal(t, 3, result.Incidents[1].Count)
	assert.Equal(t, "t5", result.Incidents[1].Timestamp)

	assert.Equal(t, []security.ClientFailures{{Client: "9.9.9.9", Count: 3}}, result.BruteForceClients)
}

func TestSession_OverlongLine(t *testing.T) {
	valid := `1.2.3.4 - - [10/Oct/2024:13:55:36 +0000] "GET / HTTP/1.1" 200 512`
	input := valid + "\n" + strings.Repeat("x", 2*parser.MaxLineSize) + "\n" + valid + "\n"

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			src := parser.NewReaderSource(strings.NewReader(input), "long")
			s := New(WithWorkers(workers))

			result, err := s.Run(context.Background(), src)
			require.NoError(t, err)

			assert.Equal(t, StateCompleted, s.State())
			assert.Equal(t, 3, result.LinesRead)
			assert.Equal(t, 2, result.Traffic.TotalRequests)
			require.Len(t, result.ParseFailures, 1)
			assert.Equal(t, 2, result.ParseFailures[0].Line)
			assert.Contains(t, result.ParseFailures[0].Reason, "maximum length")
		})
	}
}

func TestSession_StatusSumEqualsTotal(t *testing.T) {
	result, err := New().Run(context.Background(), newSliceSource(scenario))
	require.NoError(t, err)

	sum := 0
	for _, b := range result.Traffic.StatusDistribution {
		sum += b.Count
	}
	assert.Equal(t, result.Traffic.TotalRequests, sum)
}

func TestSession_GarbageLine(t *testing.T) {
	input := `192.168.1.1 - - [10/Oct/2023:13:55:36 +0000] "GET / HTTP/1.1" 200 10
this is not a log line
192.168.1.1 - - [10/Oct/2023:13:55:37 +0000] "GET / HTTP/1.1" 200 10`
	obs := &recordingObserver{}

	result, err := New(WithObserver(obs), WithLogger(testutil.NewTestLogger(t))).
		Run(context.Background(), newSliceSource(input))
	require.NoError(t, err)

	require.Len(t, result.ParseFailures, 1)
	assert.Equal(t, 2, result.ParseFailures[0].Line)
	assert.NotEmpty(t, result.ParseFailures[0].Reason)
	assert.Equal(t, 3, result.LinesRead)
	assert.Equal(t, 2, result.Traffic.TotalRequests)
	assert.Empty(t, result.Incidents)

	assert.Equal(t, 2, obs.parsed)
	assert.Equal(t, result.ParseFailures, obs.rejected)
}

func TestSession_BlankLineIsParseFailure(t *testing.T) {
	input := "192.168.1.1 - - [x] \"GET / HTTP/1.1\" 200 10\n\n"
	src := &sliceSource{lines: strings.Split(input, "\n"), failAt: -1}

	result, err := New().Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Traffic.TotalRequests)
	assert.Len(t, result.ParseFailures, 2)
}

func TestSession_SourceUnavailable(t *testing.T) {
	src := &sliceSource{failAt: 0, failErr: errors.New("permission denied")}
	s := New()

	result, err := s.Run(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.NotErrorIs(t, err, ErrSourceInterrupted)
	assert.Contains(t, err.Error(), "permission denied")

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, 0, srcErr.Line)

	assert.Equal(t, StateFailed, s.State())
	require.NotNil(t, result)
	assert.Equal(t, StateFailed, result.State)
	assert.Zero(t, result.Traffic.TotalRequests)
}

func TestSession_SourceInterrupted(t *testing.T) {
	cause := errors.New("connection reset")
	src := newSliceSource(scenario)
	src.failAt = 2
	src.failErr = cause
	s := New(WithLogger(testutil.NewTestLogger(t)))

	result, err := s.Run(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceInterrupted)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after line 2")

	assert.Equal(t, StateFailed, s.State())
	assert.Equal(t, 2, result.LinesRead)
	assert.Equal(t, 2, result.Traffic.TotalRequests)
	assert.Equal(t, 1, result.Traffic.StatusCount(401))
}

func TestSession_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	_, err := s.Run(ctx, newSliceSource(scenario))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrSourceInterrupted)
	assert.Equal(t, StateFailed, s.State())
}

func TestSession_SingleUse(t *testing.T) {
	s := New()
	_, err := s.Run(context.Background(), newSliceSource(scenario))
	require.NoError(t, err)

	result, err := s.Run(context.Background(), newSliceSource(scenario))
	assert.ErrorIs(t, err, ErrSessionUsed)
	assert.Nil(t, result)
	assert.Equal(t, StateCompleted, s.State())
}

func TestSession_FailedSessionCannotRerun(t *testing.T) {
	s := New()
	_, err := s.Run(context.Background(), &sliceSource{failAt: 0, failErr: io.ErrUnexpectedEOF})
	require.Error(t, err)

	_, err = s.Run(context.Background(), newSliceSource(scenario))
	assert.ErrorIs(t, err, ErrSessionUsed)
}

func TestSession_Observer(t *testing.T) {
	obs := &recordingObserver{}
	result, err := New(WithObserver(obs)).Run(context.Background(), newSliceSource(scenario))
	require.NoError(t, err)

	assert.Equal(t, 5, obs.parsed)
	assert.Empty(t, obs.rejected)
	assert.Equal(t, result.Incidents, obs.incidents)
}

func TestSession_DetectorOptions(t *testing.T) {
	opts := security.DefaultOptions()
	opts.BruteForceThreshold = 2

	s := New(WithDetectorOptions(opts))
	assert.Equal(t, 2, s.BruteForceThreshold())

	result, err := s.Run(context.Background(), newSliceSource(scenario))
	require.NoError(t, err)
	assert.Len(t, result.IncidentsOf(security.KindBruteForce), 2)
}

func TestSession_TopURLs(t *testing.T) {
	result, err := New(WithTopURLs(1)).Run(context.Background(), newSliceSource(scenario))
	require.NoError(t, err)
	assert.Equal(t, []traffic.Bucket[string]{{Key: "/login", Count: 3}}, result.TopURLs)
}

func TestSession_WorkersMatchSequential(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 2000; i++ {
		switch i % 7 {
		case 0:
			b.WriteString("garbage\n")
		case 1:
			fmt.Fprintf(&b, "10.0.0.%d - - [t%d] \"POST /login HTTP/1.1\" 401 0\n", i%5, i)
		case 2:
			fmt.Fprintf(&b, "10.0.1.%d - - [t%d] \"GET /q?id=1%%20UNION%%20SELECT HTTP/1.1\" 200 9\n", i%3, i)
		case 3:
			fmt.Fprintf(&b, "10.0.2.%d - - [t%d] \"GET /admin HTTP/1.1\" 403 0\n", i%4, i)
		default:
			fmt.Fprintf(&b, "10.0.3.%d - - [t%d] \"GET /page/%d HTTP/1.1\" 200 100\n", i%9, i, i%11)
		}
	}
	input := b.String()

	seq, err := New().Run(context.Background(), newSliceSource(input))
	require.NoError(t, err)

	for _, workers := range []int{2, 4, 7} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			par, err := New(WithWorkers(workers)).Run(context.Background(), newSliceSource(input))
			require.NoError(t, err)

			assert.Equal(t, seq.Traffic, par.Traffic)
			assert.Equal(t, seq.Incidents, par.Incidents)
			assert.Equal(t, seq.BruteForceClients, par.BruteForceClients)
			assert.Equal(t, seq.ParseFailures, par.ParseFailures)
			assert.Equal(t, seq.LinesRead, par.LinesRead)
		})
	}
}

func TestSession_WorkersKeepPartialState(t *testing.T) {
	src := newSliceSource(scenario)
	src.failAt = 4
	src.failErr = errors.New("disk error")

	result, err := New(WithWorkers(3)).Run(context.Background(), src)
	require.ErrorIs(t, err, ErrSourceInterrupted)
	assert.Equal(t, 4, result.Traffic.TotalRequests)
	assert.Len(t, result.IncidentsOf(security.KindBruteForce), 1)
}

func TestSession_ReaderSource(t *testing.T) {
	src := parser.NewReaderSource(strings.NewReader(scenario), "scenario")
	defer src.Close()

	result, err := New().Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Traffic.TotalRequests)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateRunning, "running"},
		{StateCompleted, "completed"},
		{StateFailed, "failed"},
		{State(9), "state(9)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
