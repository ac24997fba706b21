package interp

import (
	"context"
	"reflect"
	"runtime/debug"
	"sync/atomic"

	"ghcopilot/internal/logging"

	"golang.org/x/sync/semaphore"
)

// Gateway is the execution lock. At most one WithLock body runs at a time for
// a given Host, and since production code shares Default(), process-wide.
type Gateway struct {
	host *Host
	sem  *semaphore.Weighted
	held atomic.Bool

	acquisitions atomic.Int64
}

type lockKey struct{}

func newGateway(h *Host) *Gateway {
	return &Gateway{host: h, sem: semaphore.NewWeighted(1)}
}

// Held reports whether the lock is taken, by a body or by an evaluation
// still running after its body gave up.
func (g *Gateway) Held() bool {
	return g.held.Load()
}

// Acquisitions returns how many times the lock has been acquired.
func (g *Gateway) Acquisitions() int64 {
	return g.acquisitions.Load()
}

// WithLock acquires the execution lock, runs body with a Runtime bound to the
// host's interpreter, and releases the lock on every exit path, panics included.
// body's result and error are returned unchanged.
//
// Waiting for the lock honors ctx: if ctx ends first, body never runs and the
// context error is returned. The lock is not reentrant: calling WithLock with
// the context handed to body fails fast with ErrReentrantLock.
//
// If body returns while an Eval it started is still running (its ctx ended),
// the lock is released when that evaluation returns, not when body does.
func WithLock[T any](ctx context.Context, g *Gateway, body func(ctx context.Context, rt *Runtime) (T, error)) (T, error) {
	var zero T
	if owner, _ := ctx.Value(lockKey{}).(*Gateway); owner == g {
		return zero, ErrReentrantLock
	}
	if !g.host.Initialized() {
		return zero, ErrNotInitialized
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	g.held.Store(true)
	g.acquisitions.Add(1)
	g.host.seal()

	rt := &Runtime{host: g.host}
	defer func() {
		rt.released.Store(true)
		// An evaluation abandoned on ctx expiry keeps running inside the
		// interpreter; the lock is only released once it returns.
		if done := rt.pending(); done != nil {
			logging.Get(logging.CategoryInterp).Warn("evaluation still running after its caller gave up; lock held until it returns")
			go func() {
				<-done
				logging.InterpDebug("abandoned evaluation returned, releasing execution lock")
				g.release()
			}()
			return
		}
		g.release()
	}()

	// Close may have won the race between the Initialized check and Acquire.
	if !g.host.Initialized() {
		return zero, ErrClosed
	}

	return body(context.WithValue(ctx, lockKey{}, g), rt)
}

func (g *Gateway) release() {
	g.held.Store(false)
	g.sem.Release(1)
}

// Do is WithLock for bodies without a result.
func (g *Gateway) Do(ctx context.Context, body func(ctx context.Context, rt *Runtime) error) error {
	_, err := WithLock(ctx, g, func(ctx context.Context, rt *Runtime) (struct{}, error) {
		return struct{}{}, body(ctx, rt)
	})
	return err
}

// Runtime is the interpreter handle given to a WithLock body. It must not be
// retained: every method fails with ErrRuntimeReleased after the body returns.
type Runtime struct {
	host     *Host
	released atomic.Bool

	// inflight is closed when the most recent evaluation has returned.
	inflight chan struct{}
}

// Eval evaluates src in the interpreter on a goroutine the Runtime owns.
// When ctx ends first, Eval returns ctx.Err() at once; the evaluation keeps
// running, later Evals fail with ErrEvalInFlight, and the execution lock stays
// held until it returns.
func (rt *Runtime) Eval(ctx context.Context, src string) (reflect.Value, error) {
	if rt.released.Load() {
		return reflect.Value{}, ErrRuntimeReleased
	}
	if rt.pending() != nil {
		return reflect.Value{}, ErrEvalInFlight
	}

	var (
		v    reflect.Value
		err  error
		done = make(chan struct{})
	)
	rt.inflight = done
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				err = Panic{Value: r, Stack: debug.Stack()}
			}
		}()
		v, err = rt.host.vm.Eval(src)
	}()

	select {
	case <-done:
		return v, err
	case <-ctx.Done():
		return reflect.Value{}, ctx.Err()
	}
}

// pending returns the done channel of an evaluation that has not returned yet.
func (rt *Runtime) pending() chan struct{} {
	if rt.inflight == nil {
		return nil
	}
	select {
	case <-rt.inflight:
		return nil
	default:
		return rt.inflight
	}
}

// Define evaluates src the first time key is seen by this interpreter and is
// a no-op afterwards. Callers use it for helper declarations that must not be
// redeclared.
func (rt *Runtime) Define(ctx context.Context, key, src string) error {
	if rt.released.Load() {
		return ErrRuntimeReleased
	}
	if rt.host.defined[key] {
		return nil
	}
	if _, err := rt.Eval(ctx, src); err != nil {
		return err
	}
	rt.host.defined[key] = true
	return nil
}

// SearchPaths returns the host's module search paths.
func (rt *Runtime) SearchPaths() []string {
	return rt.host.SearchPaths()
}
