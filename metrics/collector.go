// Package metrics provides a Prometheus observer for pipelines. Install it
// with gorawronion.WithObserver and expose the registry with
// [Collector.Handler].
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	onion "github.com/Keksclan/goRawrOnion"
)

// Outcome label values.
const (
	OutcomeOK                = "ok"
	OutcomeError             = "error"
	OutcomeProtocolViolation = "protocol_violation"
)

// Option configures a Collector.
type Option func(*config)

type config struct {
	namespace string
	buckets   []float64
	gatherer  prometheus.Gatherer
}

// WithNamespace sets the metric namespace. The default is "rawr".
func WithNamespace(ns string) Option {
	return func(c *config) { c.namespace = ns }
}

// WithBuckets sets the histogram buckets for run and step durations.
func WithBuckets(b []float64) Option {
	return func(c *config) { c.buckets = b }
}

// WithGatherer sets the gatherer served by [Collector.Handler]. When the
// registerer passed to [New] is also a Gatherer it is used by default.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *config) { c.gatherer = g }
}

// Collector records pipeline runs and steps as Prometheus metrics. It
// implements [onion.Observer] and is safe for concurrent use.
type Collector struct {
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   *prometheus.GaugeVec
	steps      *prometheus.CounterVec
	stepTime   *prometheus.HistogramVec
	violations *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates a Collector and registers its metrics with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, opts ...Option) (*Collector, error) {
	cfg := config{namespace: "rawr", buckets: prometheus.DefBuckets}
	for _, o := range opts {
		o(&cfg)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if cfg.gatherer == nil {
		if g, ok := reg.(prometheus.Gatherer); ok {
			cfg.gatherer = g
		} else {
			cfg.gatherer = prometheus.DefaultGatherer
		}
	}

	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by outcome.",
		}, []string{"pipeline", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds.",
			Buckets:   cfg.buckets,
		}, []string{"pipeline"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.namespace,
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of pipeline runs that have not settled yet.",
		}, []string{"pipeline"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: "pipeline",
			Name:      "steps_total",
			Help:      "Total number of entered pipeline steps by kind and outcome.",
		}, []string{"pipeline", "kind", "outcome"}),
		stepTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Time from entering a step until its completion settled, in seconds.",
			Buckets:   cfg.buckets,
		}, []string{"pipeline", "position"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: "pipeline",
			Name:      "protocol_violations_total",
			Help:      "Total number of continuations called more than once.",
		}, []string{"pipeline"}),
		gatherer: cfg.gatherer,
	}

	for _, col := range []prometheus.Collector{c.runs, c.duration, c.inFlight, c.steps, c.stepTime, c.violations} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Handler returns an http.Handler that serves the collector's metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// StartRun implements [onion.Observer].
func (c *Collector) StartRun(_ context.Context, info onion.RunInfo) onion.RunObserver {
	c.inFlight.WithLabelValues(info.Pipeline).Inc()
	return &run{c: c, pipeline: info.Pipeline, start: time.Now()}
}

type run struct {
	c        *Collector
	pipeline string
	start    time.Time
}

func (r *run) StartStep(position int, kind onion.StepKind) func(error) {
	start := time.Now()
	return func(err error) {
		r.c.steps.WithLabelValues(r.pipeline, kind.String(), outcome(err)).Inc()
		r.c.stepTime.WithLabelValues(r.pipeline, strconv.Itoa(position)).Observe(time.Since(start).Seconds())
	}
}

func (r *run) ProtocolViolation(int) {
	r.c.violations.WithLabelValues(r.pipeline).Inc()
}

func (r *run) End(err error) {
	r.c.inFlight.WithLabelValues(r.pipeline).Dec()
	r.c.runs.WithLabelValues(r.pipeline, outcome(err)).Inc()
	r.c.duration.WithLabelValues(r.pipeline).Observe(time.Since(r.start).Seconds())
}

// outcome maps a run or step error to its label value.
func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, onion.ErrNextCalledMultipleTimes):
		return OutcomeProtocolViolation
	default:
		return OutcomeError
	}
}
