// Package metrics exposes analysis counters as Prometheus metrics.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ccollicutt/logsentry/pkg/analyzer"
	"github.com/ccollicutt/logsentry/pkg/parser"
	"github.com/ccollicutt/logsentry/pkg/security"
)

const namespace = "logsentry"

// Collector records per-line events as Prometheus metrics.
// It implements analyzer.Observer.
type Collector struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	responseBytes prometheus.Counter
	parseFailures prometheus.Counter
	incidents     *prometheus.CounterVec

	linesRead     prometheus.Gauge
	uniqueClients prometheus.Gauge
	duration      prometheus.Gauge
	lastRun       *prometheus.GaugeVec
}

var _ analyzer.Observer = (*Collector)(nil)

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Parsed requests by method and status code.",
		}, []string{"method", "status"}),
		responseBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_bytes_total",
			Help:      "Sum of response sizes of parsed requests.",
		}),
		parseFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Lines that did not match the access log format.",
		}),
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_total",
			Help:      "Security incidents by kind.",
		}, []string{"kind"}),
		linesRead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lines_read",
			Help:      "Lines read in the last run.",
		}),
		uniqueClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unique_clients",
			Help:      "Distinct clients seen in the last run.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished, by final state.",
		}, []string{"state"}),
	}

	c.registry.MustRegister(
		c.requests,
		c.responseBytes,
		c.parseFailures,
		c.incidents,
		c.linesRead,
		c.uniqueClients,
		c.duration,
		c.lastRun,
	)

	// Pre-create incident series so a clean run exports explicit zeros.
	for _, kind := range security.Kinds {
		c.incidents.WithLabelValues(string(kind))
	}

	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// LineParsed counts a parsed request.
func (c *Collector) LineParsed(rec parser.RequestRecord) {
	c.requests.WithLabelValues(rec.Method, strconv.Itoa(rec.Status)).Inc()
	c.responseBytes.Add(float64(rec.Size))
}

// LineRejected counts a parse failure.
func (c *Collector) LineRejected(analyzer.ParseFailure) {
	c.parseFailures.Inc()
}

// IncidentRaised counts an incident by kind.
func (c *Collector) IncidentRaised(inc security.Incident) {
	c.incidents.WithLabelValues(string(inc.Kind)).Inc()
}

// ObserveRun records run-level gauges from a finished session.
func (c *Collector) ObserveRun(result *analyzer.Result) {
	c.linesRead.Set(float64(result.LinesRead))
	c.uniqueClients.Set(float64(result.Traffic.UniqueClients))
	c.duration.Set(result.Duration().Seconds())
	c.lastRun.Reset()
	c.lastRun.WithLabelValues(result.State.String()).Set(float64(result.EndTime.Unix()))
}

// WriteTextfile writes all metrics to path in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
