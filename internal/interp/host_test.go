package interp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_Idempotent(t *testing.T) {
	h := NewHost()
	require.NoError(t, h.Initialize(""))
	vm := h.vm
	require.NoError(t, h.Initialize(""))
	assert.Same(t, vm, h.vm, "second Initialize must not rebuild the interpreter")
	assert.True(t, h.Initialized())
}

func TestInitialize_BadGoPathIsRetryable(t *testing.T) {
	h := NewHost()

	err := h.Initialize(filepath.Join(t.TempDir(), "missing"))
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.False(t, h.Initialized())
	assert.False(t, IsRecoverable(err))

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	require.ErrorAs(t, h.Initialize(file), &initErr)

	require.NoError(t, h.Initialize(t.TempDir()))
	assert.True(t, h.Initialized())
}

func TestAddSearchPath_DuplicateIsNoop(t *testing.T) {
	h := NewHost()
	dir := t.TempDir()

	require.NoError(t, h.AddSearchPath(dir))
	require.NoError(t, h.AddSearchPath(dir))
	require.NoError(t, h.AddSearchPath(dir+string(filepath.Separator)))

	assert.Equal(t, []string{dir}, h.SearchPaths())
}

func TestAddSearchPath_KeepsOrder(t *testing.T) {
	h := NewHost()
	a, b := t.TempDir(), t.TempDir()
	require.NoError(t, h.AddSearchPath(a))
	require.NoError(t, h.AddSearchPath(b))
	assert.Equal(t, []string{a, b}, h.SearchPaths())
}

func TestAddSearchPath_SealedAfterFirstExecution(t *testing.T) {
	dir := t.TempDir()
	h := newTestHost(t, dir)

	require.NoError(t, h.Gateway().Do(context.Background(), func(context.Context, *Runtime) error { return nil }))

	err := h.AddSearchPath(t.TempDir())
	assert.ErrorIs(t, err, ErrSearchPathsSealed)
	// Already-present paths are still a no-op.
	assert.NoError(t, h.AddSearchPath(dir))
}

func TestRegisterBinding_AfterInitializeFails(t *testing.T) {
	h := NewHost()
	require.NoError(t, h.Initialize(""))
	assert.Error(t, h.RegisterBinding(Exports{"example.com/x/x": {}}))
}

func TestAllowedImports_IncludesBindings(t *testing.T) {
	h := NewHost()
	h.AllowImports("os")
	require.NoError(t, h.RegisterBinding(Exports{
		"example.com/greet/greet": {"Hello": reflect.ValueOf(func(string) string { return "" })},
	}))

	allowed := h.AllowedImports()
	assert.Contains(t, allowed, "os")
	assert.Contains(t, allowed, "fmt")
	assert.Contains(t, allowed, "example.com/greet")
	assert.NotContains(t, allowed, "os/exec")
}

func TestClose(t *testing.T) {
	h := NewHost()
	require.NoError(t, h.Initialize(""))
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.False(t, h.Initialized())
	err := h.Initialize("")
	assert.True(t, errors.Is(err, ErrClosed))

	_, err = WithLock(context.Background(), h.Gateway(), func(context.Context, *Runtime) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestDefault_IsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
	assert.Same(t, Default().Gateway(), Default().Gateway())
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(&ModuleResolutionError{Module: "x"}))
	assert.True(t, IsRecoverable(errors.New("boom")))
	assert.False(t, IsRecoverable(ErrNotInitialized))
	assert.False(t, IsRecoverable(&InitError{Reason: "x"}))
}
