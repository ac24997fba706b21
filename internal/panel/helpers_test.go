package panel

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"ghcopilot/internal/pipeline"
	"ghcopilot/internal/response"
	"ghcopilot/internal/translator"
)

// stubRunner decodes a fixed payload, or fails, and counts its calls.
type stubRunner struct {
	payload string
	err     error
	block   chan struct{}
	started chan struct{}

	calls atomic.Int32
	mu    sync.Mutex
	seen  []translator.Query
}

func (s *stubRunner) Run(ctx context.Context, q translator.Query) (pipeline.Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, q)
	s.mu.Unlock()
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return pipeline.Result{}, ctx.Err()
		}
	}
	if s.err != nil {
		return pipeline.Result{}, s.err
	}
	raw := translator.RawPayload(s.payload)
	resp, err := response.Decode(raw)
	return pipeline.Result{Raw: raw, Response: resp}, err
}

func (s *stubRunner) queries() []translator.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]translator.Query(nil), s.seen...)
}

func explained(text string) string {
	b, _ := json.Marshal(map[string]any{"json_data": map[string]any{"explanation": text, "components": []any{}, "connections": []any{}}})
	return string(b)
}

const addition = `{"json_data":{"explanation":"Use an Addition node.","components":[],"connections":[]}}`

type panicRunner struct{}

func (panicRunner) Run(context.Context, translator.Query) (pipeline.Result, error) {
	panic("kaboom")
}
