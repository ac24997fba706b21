// Package pipeline runs one query end to end: acquire the execution lock,
// invoke the translator, decode the payload. Each run is bounded by a timeout
// and traced with OpenTelemetry.
package pipeline

import (
	"context"
	"errors"
	"time"

	"ghcopilot/internal/interp"
	"ghcopilot/internal/logging"
	"ghcopilot/internal/response"
	"ghcopilot/internal/translator"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Invoker calls the translator inside the execution lock.
// *translator.Client is the production implementation.
type Invoker interface {
	Module() string
	Invoke(ctx context.Context, rt *interp.Runtime, q translator.Query) (translator.RawPayload, error)
}

// Result is a successful run.
type Result struct {
	Raw      translator.RawPayload
	Response response.Response
	Elapsed  time.Duration
}

// Pipeline is safe for concurrent use; the gateway serializes interpreter access.
type Pipeline struct {
	gateway *interp.Gateway
	client  Invoker
	timeout time.Duration
	tracer  trace.Tracer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTimeout bounds each run, lock wait included. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// New creates a pipeline.
func New(g *interp.Gateway, client Invoker, opts ...Option) *Pipeline {
	p := &Pipeline{
		gateway: g,
		client:  client,
		timeout: 120 * time.Second,
		tracer:  otel.Tracer("ghcopilot/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Timeout returns the per-run bound.
func (p *Pipeline) Timeout() time.Duration { return p.timeout }

// Run executes q. A blank query fails with translator.ErrEmptyQuery before
// the lock is touched. When the run exceeds the timeout, the error is a
// *translator.TimeoutError and the lock has been released.
func (p *Pipeline) Run(ctx context.Context, q translator.Query) (Result, error) {
	start := time.Now()
	module := p.client.Module()

	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("translator.module", module),
		attribute.Int("query.length", len(q.Text)),
	)

	if err := q.Validate(); err != nil {
		return Result{}, fail(span, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	raw, err := interp.WithLock(ctx, p.gateway, func(ctx context.Context, rt *interp.Runtime) (translator.RawPayload, error) {
		ctx, span := p.tracer.Start(ctx, "translator.invoke")
		defer span.End()
		raw, err := p.client.Invoke(ctx, rt, q)
		if err != nil {
			return "", fail(span, err)
		}
		span.SetAttributes(attribute.Int("payload.bytes", len(raw)))
		return raw, nil
	})
	if err != nil {
		var tErr *translator.TimeoutError
		if !errors.As(err, &tErr) && errors.Is(err, context.DeadlineExceeded) {
			err = &translator.TimeoutError{Module: module, After: time.Since(start).Round(time.Millisecond)}
		}
		logging.Get(logging.CategoryPipeline).Warn("run failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return Result{}, fail(span, err)
	}

	_, decodeSpan := p.tracer.Start(ctx, "response.decode")
	resp, err := response.Decode(raw)
	if err != nil {
		fail(decodeSpan, err)
		decodeSpan.End()
		logging.Get(logging.CategoryPipeline).Warn("decode failed: %v", err)
		return Result{Raw: raw}, fail(span, err)
	}
	decodeSpan.SetAttributes(
		attribute.Int("response.components", len(resp.Components)),
		attribute.Int("response.connections", len(resp.Connections)),
	)
	decodeSpan.End()

	elapsed := time.Since(start)
	logging.Pipeline("run ok in %s (%d components, %d connections)",
		elapsed.Round(time.Millisecond), len(resp.Components), len(resp.Connections))
	return Result{Raw: raw, Response: resp, Elapsed: elapsed}, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
