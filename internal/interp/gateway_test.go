package interp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestWithLock_MutualExclusion(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newTestHost(t, t.TempDir())
	g := h.Gateway()

	const n = 64
	var (
		active    atomic.Int32
		maxActive atomic.Int32
		completed atomic.Int32
	)

	var eg errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		eg.Go(func() error {
			got, err := WithLock(context.Background(), g, func(ctx context.Context, rt *Runtime) (int, error) {
				cur := active.Add(1)
				for {
					prev := maxActive.Load()
					if cur <= prev || maxActive.CompareAndSwap(prev, cur) {
						break
					}
				}
				assert.True(t, g.Held())
				time.Sleep(100 * time.Microsecond)
				active.Add(-1)
				return i, nil
			})
			if err != nil {
				return err
			}
			if got != i {
				return errors.New("result mixed up between bodies")
			}
			completed.Add(1)
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.Equal(t, int32(1), maxActive.Load(), "more than one body ran at a time")
	assert.Equal(t, int32(n), completed.Load())
	assert.Equal(t, int64(n), g.Acquisitions())
	assert.False(t, g.Held())
}

func TestWithLock_ErrorPropagatesAndReleases(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	g := h.Gateway()
	boom := errors.New("boom")

	_, err := WithLock(context.Background(), g, func(context.Context, *Runtime) (string, error) {
		return "", boom
	})
	assert.Same(t, boom, err)
	assert.False(t, g.Held())

	got, err := WithLock(context.Background(), g, func(context.Context, *Runtime) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestWithLock_PanicReleases(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	g := h.Gateway()

	func() {
		defer func() {
			assert.Equal(t, "kaboom", recover())
		}()
		_ = g.Do(context.Background(), func(context.Context, *Runtime) error {
			panic("kaboom")
		})
	}()

	assert.False(t, g.Held())
	assert.NoError(t, g.Do(context.Background(), func(context.Context, *Runtime) error { return nil }))
}

func TestWithLock_ReentrantFailsFast(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	g := h.Gateway()

	var inner error
	err := g.Do(context.Background(), func(ctx context.Context, _ *Runtime) error {
		inner = g.Do(ctx, func(context.Context, *Runtime) error {
			t.Error("nested body must not run")
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrReentrantLock)
	assert.False(t, g.Held())
}

func TestWithLock_SeparateHostsDoNotShareLock(t *testing.T) {
	a := newTestHost(t, t.TempDir())
	b := newTestHost(t, t.TempDir())

	err := a.Gateway().Do(context.Background(), func(ctx context.Context, _ *Runtime) error {
		return b.Gateway().Do(ctx, func(context.Context, *Runtime) error { return nil })
	})
	assert.NoError(t, err)
}

func TestWithLock_NotInitialized(t *testing.T) {
	h := NewHost()
	ran := false
	err := h.Gateway().Do(context.Background(), func(context.Context, *Runtime) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.False(t, ran)
}

func TestWithLock_ContextExpiresWhileWaiting(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newTestHost(t, t.TempDir())
	g := h.Gateway()

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- g.Do(context.Background(), func(context.Context, *Runtime) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := g.Do(ctx, func(context.Context, *Runtime) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, g.Held())
}

func TestRuntime_ReleasedAfterBody(t *testing.T) {
	h := newTestHost(t, t.TempDir())

	var leaked *Runtime
	require.NoError(t, h.Gateway().Do(context.Background(), func(_ context.Context, rt *Runtime) error {
		leaked = rt
		return nil
	}))

	_, err := leaked.Eval(context.Background(), "1 + 1")
	assert.ErrorIs(t, err, ErrRuntimeReleased)
	_, err = leaked.Import(context.Background(), "finder")
	assert.ErrorIs(t, err, ErrRuntimeReleased)
}

func TestRuntime_Eval(t *testing.T) {
	h := newTestHost(t, t.TempDir())

	got, err := WithLock(context.Background(), h.Gateway(), func(ctx context.Context, rt *Runtime) (int64, error) {
		v, err := rt.Eval(ctx, "6 * 7")
		if err != nil {
			return 0, err
		}
		return v.Int(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestRuntime_DefineOnce(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	err := h.Gateway().Do(context.Background(), func(ctx context.Context, rt *Runtime) error {
		require.NoError(t, rt.Define(ctx, "twice", "func twice(n int) int { return 2 * n }"))
		// A second definition under the same key is skipped, not redeclared.
		require.NoError(t, rt.Define(ctx, "twice", "func twice(n int) int { return 3 * n }"))
		v, err := rt.Eval(ctx, "twice(21)")
		require.NoError(t, err)
		assert.Equal(t, int64(42), v.Int())
		return nil
	})
	require.NoError(t, err)
}

func TestRuntime_TimedOutEvalKeepsLock(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	h.AllowImports("time")
	g := h.Gateway()

	require.NoError(t, g.Do(context.Background(), func(ctx context.Context, rt *Runtime) error {
		return rt.Define(ctx, "slow", `package main

import "time"

var active int

func slow() int {
	active++
	defer func() { active-- }()
	if active > 1 {
		return -1
	}
	time.Sleep(300 * time.Millisecond)
	return active
}`)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := g.Do(ctx, func(ctx context.Context, rt *Runtime) error {
		_, err := rt.Eval(ctx, "slow()")
		if assert.ErrorIs(t, err, context.DeadlineExceeded) {
			_, again := rt.Eval(context.Background(), "1")
			assert.ErrorIs(t, again, ErrEvalInFlight)
		}
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "caller must not wait for the abandoned call")
	assert.True(t, g.Held(), "lock released while the abandoned call is still running")

	got, err := WithLock(context.Background(), g, func(ctx context.Context, rt *Runtime) (int64, error) {
		v, err := rt.Eval(ctx, "slow()")
		if err != nil {
			return 0, err
		}
		return v.Int(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "second call overlapped the abandoned one")
	assert.False(t, g.Held())
}

func TestRuntime_EvalPanicIsError(t *testing.T) {
	h := newTestHost(t, t.TempDir())
	err := h.Gateway().Do(context.Background(), func(ctx context.Context, rt *Runtime) error {
		_, err := rt.Eval(ctx, `panic("kaboom")`)
		return err
	})
	var p Panic
	require.ErrorAs(t, err, &p)
	assert.Equal(t, "kaboom", p.Value)
	assert.False(t, h.Gateway().Held())
}
