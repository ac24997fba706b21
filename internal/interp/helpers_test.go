package interp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const addNodeModule = `package finder

import "fmt"

type Finder struct{ calls int }

func New() *Finder { return &Finder{} }

func (f *Finder) Main(query, catalogPath, credential, outputPath string) (string, error) {
	f.calls++
	return fmt.Sprintf("%s|%s|%s|%s|%d", query, catalogPath, credential, outputPath, f.calls), nil
}
`

// writeModule writes src to dir/name.go and returns the path.
func writeModule(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name+".go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// newTestHost returns an initialized host searching dir, closed on cleanup.
func newTestHost(t *testing.T, dir string) *Host {
	t.Helper()
	h := NewHost()
	require.NoError(t, h.AddSearchPath(dir))
	require.NoError(t, h.Initialize(""))
	t.Cleanup(func() { _ = h.Close() })
	return h
}
