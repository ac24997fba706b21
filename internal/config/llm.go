package config

import "time"

// LLMConfig configures the LLM binding exported to translators.
type LLMConfig struct {
	Model   string `yaml:"model"`   // e.g. gemini-2.5-flash
	Timeout string `yaml:"timeout"` // per completion
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 90 * time.Second
	}
	return d
}
