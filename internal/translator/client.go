package translator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"ghcopilot/internal/interp"
	"ghcopilot/internal/logging"
)

// entryWrapper adapts Main to a single string result so the call can run
// through the interpreter's cancellable Eval. The first byte tags the result.
const entryWrapper = `func ghcopilotEntry(q, c, k, o string) string {
	%s
}`

const (
	wrapErrorForm = `out, err := New().Main(q, c, k, o)
	if err != nil {
		return "!" + err.Error()
	}
	return "=" + out`
	wrapPlainForm = `return "=" + New().Main(q, c, k, o)`
)

// Client invokes one translator module.
type Client struct {
	module string
}

// NewClient creates a client for the named module.
func NewClient(module string) *Client {
	return &Client{module: module}
}

// Module returns the module name.
func (c *Client) Module() string { return c.module }

// Invoke resolves the module and calls a fresh instance's Main with the query.
// It must run inside interp.WithLock; rt is the handle that call provides.
//
// Resolution failures are returned as *interp.ModuleResolutionError, ctx
// expiry as *TimeoutError, and everything else as *InvocationError.
func (c *Client) Invoke(ctx context.Context, rt *interp.Runtime, q Query) (RawPayload, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	log := logging.Get(logging.CategoryTranslator)
	start := time.Now()

	if err := c.prepare(ctx, rt); err != nil {
		return "", err
	}

	call := fmt.Sprintf("ghcopilotEntry(%q, %q, %q, %q)", q.Text, q.CatalogPath, q.Credential, q.OutputPath)
	v, err := rt.Eval(ctx, call)
	if err != nil {
		return "", c.wrap(ctx, err, start)
	}
	if !v.IsValid() || v.Kind() != reflect.String {
		return "", &InvocationError{Module: c.module, Message: "entry point returned no string"}
	}

	out := v.String()
	if strings.HasPrefix(out, "!") {
		msg := strings.TrimPrefix(out, "!")
		log.Warn("%s returned error: %s", c.module, msg)
		return "", &InvocationError{Module: c.module, Message: msg}
	}

	payload := RawPayload(strings.TrimPrefix(out, "="))
	log.Info("%s returned %d bytes in %s", c.module, len(payload), time.Since(start).Round(time.Millisecond))
	return payload, nil
}

// Check resolves the module and verifies its entry point without calling it.
func (c *Client) Check(ctx context.Context, rt *interp.Runtime) error {
	return c.prepare(ctx, rt)
}

// prepare imports the module and defines the entry wrapper matching Main's
// declared shape. It never calls New: instances are only made by the wrapper,
// one per call.
func (c *Client) prepare(ctx context.Context, rt *interp.Runtime) error {
	m, err := rt.Import(ctx, c.module)
	if err != nil {
		var resErr *interp.ModuleResolutionError
		if errors.As(err, &resErr) {
			return resErr
		}
		return &InvocationError{Module: c.module, Message: err.Error(), Err: err}
	}

	var body string
	switch m.Entry {
	case interp.EntryWithError:
		body = wrapErrorForm
	case interp.EntryPlain:
		body = wrapPlainForm
	case interp.EntryMissing:
		return &InvocationError{Module: c.module, Message: "module has no New().Main entry point"}
	default:
		return &InvocationError{
			Module:  c.module,
			Message: fmt.Sprintf("entry point has unsupported signature %s", m.EntrySignature),
		}
	}

	if err := rt.Define(ctx, "entry:"+c.module, fmt.Sprintf(entryWrapper, body)); err != nil {
		return &InvocationError{Module: c.module, Message: "failed to define entry wrapper", Err: err}
	}
	return nil
}

func (c *Client) wrap(ctx context.Context, err error, start time.Time) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logging.Get(logging.CategoryTranslator).Warn("%s timed out after %s", c.module, time.Since(start).Round(time.Millisecond))
		return &TimeoutError{Module: c.module, After: time.Since(start).Round(time.Millisecond)}
	}
	msg := err.Error()
	var p interp.Panic
	if errors.As(err, &p) {
		msg = fmt.Sprintf("panic: %v", p.Value)
	}
	return &InvocationError{Module: c.module, Message: msg, Err: err}
}
