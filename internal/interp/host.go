// Package interp hosts the process-wide embedded Go interpreter (yaegi) that
// runs translator modules, and the execution lock that serializes every access to it.
//
// The interpreter is not safe for concurrent use, so the only way to touch it is
// through WithLock, which hands the body a *Runtime valid for the duration of the call.
package interp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"ghcopilot/internal/logging"

	yaegi "github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Exports is the symbol table shape used to expose host packages to scripts.
// Keys are "import/path/pkgname".
type Exports = yaegi.Exports

// Panic is the error Eval returns when interpreted code panics.
type Panic = yaegi.Panic

// Host owns the embedded interpreter's running state: whether it has been
// initialized, the ordered module search paths, and the loaded module cache.
type Host struct {
	mu          sync.Mutex
	initialized bool
	closed      bool
	sealed      bool
	goPath      string
	searchPaths []string
	allowed     map[string]bool
	bindings    []Exports

	// Guarded by the execution lock, not mu.
	vm      *yaegi.Interpreter
	modules map[string]*Module
	failed  map[string]error
	defined map[string]bool

	gateway *Gateway
}

// baselineImports are importable by every module: pure computation and encoding,
// no filesystem, process or network access. Hosts widen this with AllowImports.
var baselineImports = []string{
	"bytes", "encoding/base64", "encoding/json", "errors", "fmt", "math",
	"path", "regexp", "sort", "strconv", "strings", "time",
	"unicode", "unicode/utf8",
}

var defaultHost = sync.OnceValue(NewHost)

// Default returns the process-wide host. Components should receive it by
// injection rather than calling Default themselves.
func Default() *Host {
	return defaultHost()
}

// NewHost creates an uninitialized host with its own execution lock.
// Production code uses Default; tests create isolated hosts.
func NewHost() *Host {
	h := &Host{
		allowed: make(map[string]bool),
		modules: make(map[string]*Module),
		failed:  make(map[string]error),
		defined: make(map[string]bool),
	}
	for _, p := range baselineImports {
		h.allowed[p] = true
	}
	h.gateway = newGateway(h)
	return h
}

// Gateway returns the host's execution lock gateway.
func (h *Host) Gateway() *Gateway {
	return h.gateway
}

// Initialize performs the one-time interpreter setup. It is idempotent:
// once initialized, later calls return nil without touching the interpreter.
// goPathOverride, when set, must be an existing directory; it becomes the
// interpreter's GOPATH for source imports.
func (h *Host) Initialize(goPathOverride string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return &InitError{Reason: "host was closed", Err: ErrClosed}
	}
	if h.initialized {
		return nil
	}

	if goPathOverride != "" {
		info, err := os.Stat(goPathOverride)
		if err != nil {
			return &InitError{Reason: "gopath override not accessible", Err: err}
		}
		if !info.IsDir() {
			return &InitError{Reason: fmt.Sprintf("gopath override %s is not a directory", goPathOverride)}
		}
	}

	out := logging.Writer(logging.CategoryInterp)
	vm := yaegi.New(yaegi.Options{
		GoPath: goPathOverride,
		Stdout: out,
		Stderr: out,
	})
	if err := vm.Use(stdlib.Symbols); err != nil {
		return &InitError{Reason: "failed to load stdlib symbols", Err: err}
	}
	for _, exports := range h.bindings {
		if err := vm.Use(exports); err != nil {
			return &InitError{Reason: "failed to load host binding", Err: err}
		}
	}

	h.vm = vm
	h.goPath = goPathOverride
	h.initialized = true
	logging.Interp("interpreter initialized (gopath=%q, bindings=%d, search paths=%v)",
		goPathOverride, len(h.bindings), h.searchPaths)
	return nil
}

// Initialized reports whether Initialize has completed successfully.
func (h *Host) Initialized() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.initialized && !h.closed
}

// AddSearchPath appends path to the module search paths. Adding a path that is
// already present is a no-op. New paths are rejected once the interpreter has
// executed anything.
func (h *Host) AddSearchPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve search path %s: %w", path, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, p := range h.searchPaths {
		if p == abs {
			return nil
		}
	}
	if h.sealed {
		return fmt.Errorf("%w: %s", ErrSearchPathsSealed, abs)
	}
	h.searchPaths = append(h.searchPaths, abs)
	logging.InterpDebug("search path added: %s", abs)
	return nil
}

// SearchPaths returns a copy of the module search paths in lookup order.
func (h *Host) SearchPaths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.searchPaths...)
}

// AllowImports adds packages that module sources may import. Host bindings
// registered with RegisterBinding are always importable.
func (h *Host) AllowImports(paths ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range paths {
		h.allowed[p] = true
	}
}

// AllowedImports returns the sorted import allow-list, bindings included.
func (h *Host) AllowedImports() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for p := range h.allowed {
		out = append(out, p)
	}
	for _, exports := range h.bindings {
		for key := range exports {
			out = append(out, bindingPath(key))
		}
	}
	sort.Strings(out)
	return out
}

// RegisterBinding makes a host package available to module sources.
// Bindings are loaded by Initialize, so they must be registered before it.
func (h *Host) RegisterBinding(exports Exports) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return fmt.Errorf("bindings must be registered before Initialize")
	}
	h.bindings = append(h.bindings, exports)
	return nil
}

// Close tears the interpreter down. It waits for any in-flight execution
// to finish first, so it never races a running module.
func (h *Host) Close() error {
	if err := h.gateway.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer h.gateway.sem.Release(1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.vm = nil
	h.modules = make(map[string]*Module)
	h.failed = make(map[string]error)
	h.defined = make(map[string]bool)
	logging.Interp("interpreter closed")
	return nil
}

func (h *Host) seal() {
	h.mu.Lock()
	h.sealed = true
	h.mu.Unlock()
}

func (h *Host) importAllowed(path string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.allowed[path] {
		return true
	}
	for _, exports := range h.bindings {
		for key := range exports {
			if bindingPath(key) == path {
				return true
			}
		}
	}
	return false
}

// bindingPath turns an Exports key ("ghcopilot/pkg/llm/llm") into its import path.
func bindingPath(key string) string {
	if i := strings.LastIndex(key, "/"); i > 0 {
		return key[:i]
	}
	return key
}
