package config

import "ghcopilot/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	Format     string          `yaml:"format"`               // json, console
	File       string          `yaml:"file"`                 // empty = stderr
	Categories map[string]bool `yaml:"categories,omitempty"` // per-category toggles
}

// Options converts the config into logger options. verbose forces debug level.
func (c *LoggingConfig) Options(verbose bool) logging.Options {
	opts := logging.Options{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		Categories: c.Categories,
	}
	if verbose {
		opts.Level = "debug"
	}
	return opts
}
