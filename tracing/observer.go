// Package tracing provides an OpenTelemetry observer for pipelines. It is
// entirely optional: spans are only recorded when the observer is installed
// via gorawronion.WithObserver.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	onion "github.com/Keksclan/goRawrOnion"
)

// TracingConfig holds the OpenTelemetry configuration used by the observer.
type TracingConfig struct {
	// TracerProvider supplies the Tracer used to create spans. When nil the
	// global otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider
}

// tracer returns a configured [trace.Tracer].
func (c *TracingConfig) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer("github.com/Keksclan/goRawrOnion/tracing")
}

// Observer returns an [onion.Observer] that records one span per run and one
// child span per entered step. Step spans nest like the onion: the span of
// position i+1 is a child of the span of position i. If cfg is nil the
// observer records nothing.
func Observer(cfg *TracingConfig) onion.Observer {
	if cfg == nil {
		return noop{}
	}
	return &observer{tracer: cfg.tracer()}
}

type observer struct {
	tracer trace.Tracer
}

func (o *observer) StartRun(ctx context.Context, info onion.RunInfo) onion.RunObserver {
	ctx, span := o.tracer.Start(ctx, "rawr.pipeline "+info.Pipeline,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("rawr.pipeline", info.Pipeline),
			attribute.String("rawr.run_id", info.ID),
			attribute.Int("rawr.pipeline.size", info.Size),
			attribute.Bool("rawr.pipeline.terminal", info.Terminal),
		),
	)
	return &run{
		tracer: o.tracer,
		info:   info,
		ctx:    ctx,
		span:   span,
		steps:  make(map[int]context.Context),
	}
}

// run tracks the spans of a single pipeline run.
type run struct {
	tracer trace.Tracer
	info   onion.RunInfo
	ctx    context.Context
	span   trace.Span

	mu    sync.Mutex
	steps map[int]context.Context
}

// parent returns the context of the closest entered position before pos, or
// the run context for the first step.
func (r *run) parent(pos int) context.Context {
	for p := pos - 1; p >= 0; p-- {
		if ctx, ok := r.steps[p]; ok {
			return ctx
		}
	}
	return r.ctx
}

func (r *run) StartStep(position int, kind onion.StepKind) func(error) {
	r.mu.Lock()
	parent := r.parent(position)
	ctx, span := r.tracer.Start(parent, "rawr.step",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("rawr.pipeline", r.info.Pipeline),
			attribute.String("rawr.run_id", r.info.ID),
			attribute.Int("rawr.step.position", position),
			attribute.String("rawr.step.kind", kind.String()),
		),
	)
	r.steps[position] = ctx
	r.mu.Unlock()

	return func(err error) {
		recordStatus(span, err)
		span.End()
	}
}

func (r *run) ProtocolViolation(position int) {
	r.span.AddEvent("rawr.protocol_violation",
		trace.WithAttributes(attribute.Int("rawr.step.position", position)),
	)
}

func (r *run) End(err error) {
	recordStatus(r.span, err)
	r.span.End()
}

// recordStatus sets the span status from err.
func recordStatus(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

type noop struct{}

func (noop) StartRun(context.Context, onion.RunInfo) onion.RunObserver { return noopRun{} }

type noopRun struct{}

func (noopRun) StartStep(int, onion.StepKind) func(error) { return func(error) {} }
func (noopRun) ProtocolViolation(int)                     {}
func (noopRun) End(error)                                 {}
