// Package logging provides config-driven categorized logging for the copilot.
// Every subsystem logs through a Category; the categories share one zap core
// whose level, encoding and destination come from the logging section of copilot.yaml.
// Until Initialize is called every logger is a no-op, so library use and tests stay silent.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zapio"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup and shutdown
	CategoryConfig      Category = "config"      // Config load and hot reload
	CategoryInterp      Category = "interp"      // Embedded interpreter lifecycle and script output
	CategoryTranslator  Category = "translator"  // Translator module resolution and invocation
	CategoryPipeline    Category = "pipeline"    // Lock + invoke + decode runs
	CategoryPanel       Category = "panel"       // Panel state transitions
	CategoryBridge      Category = "bridge"      // Host event subscription and forwarding
	CategoryDiagnostics Category = "diagnostics" // Host-visible diagnostics
	CategoryLLM         Category = "llm"         // LLM binding calls made by translators
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // empty = stderr
	Categories map[string]bool // missing = enabled
}

// Logger is a category-scoped logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	root       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
	logFile    *os.File
	mu         sync.RWMutex
)

// Initialize builds the shared zap core from opts and resets cached loggers.
// It may be called again to apply a reloaded configuration.
func Initialize(opts Options) error {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch opts.Format {
	case "", "console", "text":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return fmt.Errorf("invalid log format %q (valid: json, console)", opts.Format)
	}

	var (
		sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
		file *os.File
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		sink = zapcore.AddSync(f)
	}

	replace(zap.New(zapcore.NewCore(enc, sink, level)), opts.Categories, file)
	Get(CategoryBoot).Info("logging initialized (level=%s, format=%s)", level.Level(), opts.Format)
	return nil
}

// ReplaceRoot swaps the root logger, returning a func that restores the previous one.
// Used by tests that observe log output and by hosts that already own a zap logger.
func ReplaceRoot(l *zap.Logger) func() {
	mu.Lock()
	prevRoot, prevCats, prevFile := root, categories, logFile
	mu.Unlock()
	replace(l, nil, prevFile)
	return func() {
		replace(prevRoot, prevCats, prevFile)
	}
}

func replace(l *zap.Logger, cats map[string]bool, file *os.File) {
	mu.Lock()
	defer mu.Unlock()
	_ = root.Sync()
	if logFile != nil && file != logFile {
		_ = logFile.Close()
	}
	root = l
	categories = cats
	logFile = file
	loggers = make(map[Category]*Logger)
}

// Root returns the shared zap logger for callers that want typed fields.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	enabled, exists := categories[string(category)]
	return !exists || enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if the category is disabled.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	base := root
	if enabled, exists := categories[string(category)]; exists && !enabled {
		base = zap.NewNop()
	}
	l := &Logger{
		category: category,
		sugar:    base.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a logger that attaches key-value context to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Writer returns an io.Writer that logs each written line at info level.
// The embedded interpreter's stdout and stderr are routed through it. The
// root logger is looked up per write, so the writer survives Initialize.
func Writer(category Category) io.Writer {
	return scriptWriter{category: category}
}

type scriptWriter struct{ category Category }

func (w scriptWriter) Write(p []byte) (int, error) {
	zw := &zapio.Writer{
		Log:   Root().Named(string(w.category)).With(zap.String("stream", "script")),
		Level: zapcore.InfoLevel,
	}
	n, err := zw.Write(p)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Sync flushes buffered entries.
func Sync() {
	_ = Root().Sync()
}

// CloseAll flushes and closes the log file, reverting to the no-op logger.
func CloseAll() {
	replace(zap.NewNop(), nil, nil)
}

// Interp logs to the interpreter category.
func Interp(format string, args ...interface{}) {
	Get(CategoryInterp).Info(format, args...)
}

// InterpDebug logs debug output to the interpreter category.
func InterpDebug(format string, args ...interface{}) {
	Get(CategoryInterp).Debug(format, args...)
}

// Panel logs to the panel category.
func Panel(format string, args ...interface{}) {
	Get(CategoryPanel).Info(format, args...)
}

// PanelDebug logs debug output to the panel category.
func PanelDebug(format string, args ...interface{}) {
	Get(CategoryPanel).Debug(format, args...)
}

// Pipeline logs to the pipeline category.
func Pipeline(format string, args ...interface{}) {
	Get(CategoryPipeline).Info(format, args...)
}

// PipelineDebug logs debug output to the pipeline category.
func PipelineDebug(format string, args ...interface{}) {
	Get(CategoryPipeline).Debug(format, args...)
}
