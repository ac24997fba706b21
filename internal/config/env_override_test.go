package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_Credential(t *testing.T) {
	t.Run("GEMINI_API_KEY sets credential", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("COPILOT_API_KEY", "")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "gem-key", cfg.Translator.Credential)
	})

	t.Run("COPILOT_API_KEY wins over GEMINI_API_KEY", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("COPILOT_API_KEY", "copilot-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "copilot-key", cfg.Translator.Credential)
	})

	t.Run("unset keeps file value", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		t.Setenv("COPILOT_API_KEY", "")

		cfg := DefaultConfig()
		cfg.Translator.Credential = "from-file"
		cfg.applyEnvOverrides()

		assert.Equal(t, "from-file", cfg.Translator.Credential)
	})
}

func TestEnvOverrides_Paths(t *testing.T) {
	t.Setenv("COPILOT_CATALOG", "/data/components.json")
	t.Setenv("COPILOT_OUTPUT", "/tmp/out.json")
	t.Setenv("COPILOT_GOPATH", "/opt/gopath")
	t.Setenv("COPILOT_SCRIPTS", "/a"+string(filepath.ListSeparator)+"translators"+string(filepath.ListSeparator)+"/b")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/data/components.json", cfg.Translator.CatalogPath)
	assert.Equal(t, "/tmp/out.json", cfg.Translator.OutputPath)
	assert.Equal(t, "/opt/gopath", cfg.Interpreter.GoPath)
	// Existing entries are not duplicated; new ones append in order.
	assert.Equal(t, []string{"translators", "/a", "/b"}, cfg.Interpreter.SearchPaths)
}
