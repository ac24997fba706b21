// Package llm is the language-model binding exported to translator modules.
//
// Translators run inside the embedded interpreter and import "ghcopilot/pkg/llm"
// like any Go package; the host exposes Complete through Exports. The same
// package compiles natively, so translators can be tested outside the interpreter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"ghcopilot/internal/logging"

	"google.golang.org/genai"
)

// ErrNoCredential is returned when a completion is requested without a credential.
var ErrNoCredential = errors.New("llm: credential is required")

// ErrNoCompleter is returned by Complete before SetDefault has been called.
var ErrNoCompleter = errors.New("llm: no completer configured")

// Completer produces a completion for prompt under the given system instruction.
type Completer interface {
	Complete(ctx context.Context, credential, system, prompt string) (string, error)
}

// =============================================================================
// GOOGLE GENAI COMPLETER
// =============================================================================

// GenAICompleter completes prompts with Google's Gemini API. Clients are
// created lazily and cached per credential.
type GenAICompleter struct {
	model string

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGenAICompleter creates a completer for model.
func NewGenAICompleter(model string) *GenAICompleter {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GenAICompleter{model: model, clients: make(map[string]*genai.Client)}
}

// Model returns the model name.
func (g *GenAICompleter) Model() string { return g.model }

func (g *GenAICompleter) client(ctx context.Context, credential string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[credential]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.clients[credential] = c
	return c, nil
}

// Complete implements Completer.
func (g *GenAICompleter) Complete(ctx context.Context, credential, system, prompt string) (string, error) {
	if credential == "" {
		return "", ErrNoCredential
	}
	client, err := g.client(ctx, credential)
	if err != nil {
		return "", err
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI completion failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("GenAI returned no text")
	}
	return text, nil
}

// =============================================================================
// PACKAGE-LEVEL BINDING
// =============================================================================

var (
	defaultMu        sync.RWMutex
	defaultCompleter Completer
	defaultTimeout   = 90 * time.Second
)

// SetDefault installs the completer used by Complete and returns a function
// restoring the previous one.
func SetDefault(c Completer, timeout time.Duration) func() {
	defaultMu.Lock()
	prev, prevTimeout := defaultCompleter, defaultTimeout
	defaultCompleter = c
	if timeout > 0 {
		defaultTimeout = timeout
	}
	defaultMu.Unlock()

	return func() {
		defaultMu.Lock()
		defaultCompleter, defaultTimeout = prev, prevTimeout
		defaultMu.Unlock()
	}
}

// Complete asks the default completer for a completion, bounded by the
// configured timeout. This is the function translator modules call.
func Complete(credential, system, prompt string) (string, error) {
	defaultMu.RLock()
	c, timeout := defaultCompleter, defaultTimeout
	defaultMu.RUnlock()

	if c == nil {
		return "", ErrNoCompleter
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	out, err := c.Complete(ctx, credential, system, prompt)
	log := logging.Get(logging.CategoryLLM)
	if err != nil {
		log.Warn("completion failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return "", err
	}
	log.Info("completion: %d prompt chars -> %d chars in %s", len(prompt), len(out), time.Since(start).Round(time.Millisecond))
	return out, nil
}

// ImportPath is the path translator modules import this package by.
const ImportPath = "ghcopilot/pkg/llm"

// Exports returns the interpreter symbol table for this package, in the
// shape interp.Host.RegisterBinding expects.
func Exports() map[string]map[string]reflect.Value {
	return map[string]map[string]reflect.Value{
		ImportPath + "/llm": {
			"Complete":        reflect.ValueOf(Complete),
			"ErrNoCredential": reflect.ValueOf(&ErrNoCredential).Elem(),
			"ErrNoCompleter":  reflect.ValueOf(&ErrNoCompleter).Elem(),
		},
	}
}
