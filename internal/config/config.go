package config

import (
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file name looked up in the working directory.
const DefaultConfigFile = "copilot.yaml"

// Config holds all copilot configuration.
type Config struct {
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Translator  TranslatorConfig  `yaml:"translator"`
	LLM         LLMConfig         `yaml:"llm"`
	Panel       PanelConfig       `yaml:"panel"`
	Logging     LoggingConfig     `yaml:"logging"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// InterpreterConfig configures the embedded interpreter host.
type InterpreterConfig struct {
	// GoPath overrides the interpreter's GOPATH (where it looks up source imports).
	GoPath string `yaml:"gopath"`

	// SearchPaths are scanned in order when resolving the translator module.
	SearchPaths []string `yaml:"search_paths"`

	// AllowedImports lists the stdlib packages translator sources may import.
	// Host bindings are always allowed.
	AllowedImports []string `yaml:"allowed_imports"`
}

// TranslatorConfig configures the translator call.
type TranslatorConfig struct {
	Module      string `yaml:"module"`
	CatalogPath string `yaml:"catalog_path"`
	OutputPath  string `yaml:"output_path"`
	Credential  string `yaml:"credential"`
	Timeout     string `yaml:"timeout"`
}

// PanelConfig configures the popup panel.
type PanelConfig struct {
	OpenChord  string `yaml:"open_chord"`
	CloseChord string `yaml:"close_chord"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
}

// DiagnosticsConfig configures the diagnostics journal.
type DiagnosticsConfig struct {
	// JournalPath is the sqlite file diagnostics are recorded to. Empty disables the journal.
	JournalPath string `yaml:"journal_path"`
}

// DefaultAllowedImports is the stdlib subset translators may import.
var DefaultAllowedImports = []string{
	"bytes", "encoding/json", "errors", "fmt", "math", "os",
	"path", "path/filepath", "regexp", "sort", "strconv", "strings",
	"time", "unicode", "unicode/utf8",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Interpreter: InterpreterConfig{
			SearchPaths:    []string{"translators"},
			AllowedImports: append([]string(nil), DefaultAllowedImports...),
		},
		Translator: TranslatorConfig{
			Module:      "componentfinder",
			CatalogPath: filepath.Join("catalog", "components.json"),
			OutputPath:  filepath.Join(os.TempDir(), "copilot-response.json"),
			Timeout:     "120s",
		},
		LLM: LLMConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "90s",
		},
		Panel: PanelConfig{
			OpenChord:  "ctrl+k",
			CloseChord: "ctrl+w",
			Width:      400,
			Height:     560,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   filepath.Join(".copilot", "copilot.log"),
		},
		Diagnostics: DiagnosticsConfig{
			JournalPath: filepath.Join(".copilot", "diagnostics.db"),
		},
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Credential, most specific wins
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Translator.Credential = key
	}
	if key := os.Getenv("COPILOT_API_KEY"); key != "" {
		c.Translator.Credential = key
	}

	if path := os.Getenv("COPILOT_CATALOG"); path != "" {
		c.Translator.CatalogPath = path
	}
	if path := os.Getenv("COPILOT_OUTPUT"); path != "" {
		c.Translator.OutputPath = path
	}
	if path := os.Getenv("COPILOT_GOPATH"); path != "" {
		c.Interpreter.GoPath = path
	}
	if paths := os.Getenv("COPILOT_SCRIPTS"); paths != "" {
		for _, p := range filepath.SplitList(paths) {
			if p != "" && !contains(c.Interpreter.SearchPaths, p) {
				c.Interpreter.SearchPaths = append(c.Interpreter.SearchPaths, p)
			}
		}
	}
}

// GetTranslatorTimeout returns the translator timeout as a duration.
func (c *Config) GetTranslatorTimeout() time.Duration {
	d, err := time.ParseDuration(c.Translator.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var problems []string

	if !token.IsIdentifier(c.Translator.Module) {
		problems = append(problems, fmt.Sprintf("translator.module %q is not a valid package name", c.Translator.Module))
	}
	if len(c.Interpreter.SearchPaths) == 0 {
		problems = append(problems, "interpreter.search_paths is empty")
	}
	for name, value := range map[string]string{
		"translator.timeout": c.Translator.Timeout,
		"llm.timeout":        c.LLM.Timeout,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			problems = append(problems, fmt.Sprintf("%s %q is not a positive duration", name, value))
		}
	}
	if c.Panel.OpenChord == "" {
		problems = append(problems, "panel.open_chord is empty")
	}
	if c.Panel.OpenChord == c.Panel.CloseChord {
		problems = append(problems, "panel.open_chord and panel.close_chord must differ")
	}
	if c.Panel.Width <= 0 || c.Panel.Height <= 0 {
		problems = append(problems, "panel.width and panel.height must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ResolvePaths makes relative search and journal paths absolute against base.
func (c *Config) ResolvePaths(base string) {
	for i, p := range c.Interpreter.SearchPaths {
		c.Interpreter.SearchPaths[i] = resolve(base, p)
	}
	c.Translator.CatalogPath = resolve(base, c.Translator.CatalogPath)
	c.Translator.OutputPath = resolve(base, c.Translator.OutputPath)
	if c.Diagnostics.JournalPath != "" {
		c.Diagnostics.JournalPath = resolve(base, c.Diagnostics.JournalPath)
	}
	if c.Logging.File != "" {
		c.Logging.File = resolve(base, c.Logging.File)
	}
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
