package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"ghcopilot/internal/config"
	"ghcopilot/internal/diagnostics"
	"ghcopilot/internal/interp"
	"ghcopilot/internal/logging"
	"ghcopilot/internal/pipeline"
	"ghcopilot/internal/translator"
	"ghcopilot/pkg/llm"

	"github.com/spf13/cobra"
)

// newHost returns the interpreter host commands run on.
var newHost = interp.Default

// app wires the interpreter host, pipeline and diagnostics for one run of
// the CLI.
type app struct {
	mu  sync.RWMutex
	cfg *config.Config

	host     *interp.Host
	client   *translator.Client
	pipeline *pipeline.Pipeline
	journal  *diagnostics.Journal
	sink     diagnostics.Sink

	stopTracing func(context.Context) error
}

// newApp prepares host for cfg and initializes it. The LLM binding is
// registered before initialization so translators can import it.
func newApp(c *config.Config, host *interp.Host) (*app, error) {
	a := &app{cfg: c, host: host}

	if trace {
		stop, err := pipeline.InitTracing(os.Stderr)
		if err != nil {
			return nil, err
		}
		a.stopTracing = stop
	}

	llm.SetDefault(llm.NewGenAICompleter(c.LLM.Model), c.GetLLMTimeout())
	if !host.Initialized() {
		if err := host.RegisterBinding(llm.Exports()); err != nil {
			return nil, err
		}
	}
	host.AllowImports(c.Interpreter.AllowedImports...)
	for _, p := range c.Interpreter.SearchPaths {
		if err := host.AddSearchPath(p); err != nil {
			return nil, err
		}
	}
	if err := host.Initialize(c.Interpreter.GoPath); err != nil {
		return nil, err
	}

	sinks := []diagnostics.Sink{diagnostics.LogSink{}}
	if c.Diagnostics.JournalPath != "" {
		j, err := diagnostics.OpenJournal(c.Diagnostics.JournalPath)
		if err != nil {
			logging.Get(logging.CategoryDiagnostics).Warn("journal disabled: %v", err)
		} else {
			a.journal = j
			sinks = append(sinks, j)
		}
	}
	a.sink = diagnostics.Multi(sinks...)

	a.client = translator.NewClient(c.Translator.Module)
	a.pipeline = pipeline.New(host.Gateway(), a.client, pipeline.WithTimeout(c.GetTranslatorTimeout()))
	logging.Get(logging.CategoryBoot).Info("copilot ready (module=%s, search paths=%v)", c.Translator.Module, host.SearchPaths())
	return a, nil
}

// settings returns the query fields taken from the current config.
func (a *app) settings() translator.Query {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return translator.Query{
		Credential:  a.cfg.Translator.Credential,
		CatalogPath: a.cfg.Translator.CatalogPath,
		OutputPath:  a.cfg.Translator.OutputPath,
	}
}

// reload applies a changed config file. Logging settings apply at once.
// Credential, catalog and output paths take effect on the next submission; interpreter settings need a restart.
func (a *app) reload(c *config.Config) {
	a.mu.Lock()
	prev := a.cfg
	a.cfg = c
	a.mu.Unlock()

	llm.SetDefault(llm.NewGenAICompleter(c.LLM.Model), c.GetLLMTimeout())
	if err := logging.Initialize(c.Logging.Options(verbose)); err != nil {
		logging.Get(logging.CategoryConfig).Warn("keeping previous logging settings: %v", err)
	}
	if !slices.Equal(prev.Interpreter.SearchPaths, c.Interpreter.SearchPaths) ||
		prev.Translator.Module != c.Translator.Module {
		logging.Get(logging.CategoryConfig).Warn("interpreter settings changed; restart copilot to apply them")
	}
}

// report records a failure.
func (a *app) report(err error) diagnostics.Diagnostic {
	d := diagnostics.FromError(err)
	a.sink.Report(d)
	return d
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logging.Get(logging.CategoryDiagnostics).Error("closing journal: %v", err)
		}
	}
	if a.stopTracing != nil {
		_ = a.stopTracing(context.Background())
	}
}

func describe(err error) string {
	return fmt.Sprintf("copilot: %s", diagnostics.OneLine(err.Error()))
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
