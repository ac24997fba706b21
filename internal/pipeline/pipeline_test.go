package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ghcopilot/internal/interp"
	"ghcopilot/internal/response"
	"ghcopilot/internal/translator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type stubInvoker struct {
	payload translator.RawPayload
	err     error
	block   chan struct{}
	calls   atomic.Int32
}

func (s *stubInvoker) Module() string { return "stub" }

func (s *stubInvoker) Invoke(ctx context.Context, rt *interp.Runtime, q translator.Query) (translator.RawPayload, error) {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return "", &translator.TimeoutError{Module: "stub"}
		}
	}
	return s.payload, s.err
}

func newGateway(t *testing.T) *interp.Gateway {
	t.Helper()
	h := interp.NewHost()
	require.NoError(t, h.Initialize(""))
	t.Cleanup(func() { _ = h.Close() })
	return h.Gateway()
}

func newTraced(t *testing.T, g *interp.Gateway, inv Invoker, opts ...Option) (*Pipeline, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	opts = append([]Option{WithTracer(tp.Tracer("test"))}, opts...)
	return New(g, inv, opts...), rec
}

func spanNames(rec *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	return names
}

var query = translator.Query{Text: "add two numbers", Credential: "key"}

func TestRun_Success(t *testing.T) {
	g := newGateway(t)
	inv := &stubInvoker{payload: `{"json_data":{"explanation":"Use an Addition node.","components":[],"connections":[]}}`}
	p, rec := newTraced(t, g, inv)

	res, err := p.Run(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, "Use an Addition node.", res.Response.Explanation)
	assert.Equal(t, inv.payload, res.Raw)
	assert.False(t, g.Held())
	assert.ElementsMatch(t, []string{"translator.invoke", "response.decode", "pipeline.run"}, spanNames(rec))
}

func TestRun_EmptyQuerySkipsLock(t *testing.T) {
	g := newGateway(t)
	inv := &stubInvoker{}
	p, _ := newTraced(t, g, inv)

	_, err := p.Run(context.Background(), translator.Query{Text: "   "})
	assert.ErrorIs(t, err, translator.ErrEmptyQuery)
	assert.Zero(t, inv.calls.Load())
	assert.Zero(t, g.Acquisitions())
}

func TestRun_InvocationErrorIsRecorded(t *testing.T) {
	g := newGateway(t)
	boom := &translator.InvocationError{Module: "stub", Message: "boom"}
	p, rec := newTraced(t, g, &stubInvoker{err: boom})

	_, err := p.Run(context.Background(), query)
	assert.ErrorIs(t, err, boom)
	assert.False(t, g.Held())

	for _, s := range rec.Ended() {
		if s.Name() == "pipeline.run" {
			assert.Equal(t, codes.Error, s.Status().Code)
		}
	}
}

func TestRun_DecodeErrorKeepsRaw(t *testing.T) {
	g := newGateway(t)
	p, _ := newTraced(t, g, &stubInvoker{payload: `{"json_data":{}}`})

	res, err := p.Run(context.Background(), query)
	var missing *response.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "explanation", missing.Field)
	assert.Equal(t, translator.RawPayload(`{"json_data":{}}`), res.Raw)
}

func TestRun_TimeoutReleasesLock(t *testing.T) {
	g := newGateway(t)
	inv := &stubInvoker{block: make(chan struct{})}
	defer close(inv.block)
	p, _ := newTraced(t, g, inv, WithTimeout(30*time.Millisecond))

	_, err := p.Run(context.Background(), query)
	var tErr *translator.TimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.False(t, g.Held())
}

func TestRun_TimeoutWhileWaitingForLock(t *testing.T) {
	g := newGateway(t)
	p, _ := newTraced(t, g, &stubInvoker{payload: `{"json_data":{"explanation":"x"}}`}, WithTimeout(30*time.Millisecond))

	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), func(ctx context.Context, rt *interp.Runtime) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding
	defer close(release)

	_, err := p.Run(context.Background(), query)
	var tErr *translator.TimeoutError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "stub", tErr.Module)
}

func TestRun_CallerCancel(t *testing.T) {
	g := newGateway(t)
	p, _ := newTraced(t, g, &stubInvoker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, query)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNew_Defaults(t *testing.T) {
	p := New(newGateway(t), &stubInvoker{})
	assert.Equal(t, 120*time.Second, p.Timeout())
}
