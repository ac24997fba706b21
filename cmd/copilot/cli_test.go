package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"ghcopilot/internal/config"
	"ghcopilot/internal/interp"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stubTranslator = `package stub

import "errors"

type Stub struct{}

func New() *Stub { return &Stub{} }

func (s *Stub) Main(query, catalogPath, credential, outputPath string) (string, error) {
	if query == "fail" {
		return "", errors.New("catalog unreadable")
	}
	return ` + "`" + `{"json_data":{"explanation":"Use an Addition node.","components":[{"name":"Addition","category":"Maths"}],"connections":[{"from":"Slider","to":"Addition","input":"A"}]}}` + "`" + `, nil
}
`

// setupWorkspace points the CLI globals at a temp workspace with a stub
// translator and a fresh interpreter host.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "translators"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "translators", "stub.go"), []byte(stubTranslator), 0644))

	c := config.DefaultConfig()
	c.Translator.Module = "stub"
	c.Logging.File = ""
	c.ResolvePaths(ws)
	cfg = c

	host := interp.NewHost()
	prev := newHost
	newHost = func() *interp.Host { return host }
	t.Cleanup(func() {
		newHost = prev
		cfg = nil
		_ = host.Close()
	})
	return ws
}

func TestAskCmd(t *testing.T) {
	setupWorkspace(t)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runAsk(cmd, []string{"add", "two", "numbers"}))

	assert.Contains(t, out.String(), "Use an Addition node.")
	assert.Contains(t, out.String(), "Addition (Maths)")
	assert.Contains(t, out.String(), "Slider -> Addition (A)")
}

func TestAskCmd_FailureIsJournaled(t *testing.T) {
	ws := setupWorkspace(t)

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	err := runAsk(cmd, []string{"fail"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog unreadable")

	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, runDiagnostics(cmd, nil))
	assert.Contains(t, out.String(), "catalog unreadable")
	assert.FileExists(t, filepath.Join(ws, ".copilot", "diagnostics.db"))
}

func TestCheckCmd(t *testing.T) {
	setupWorkspace(t)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runCheck(cmd, nil))
	assert.Contains(t, out.String(), "module:       stub")
	assert.Contains(t, out.String(), "status:       ok")
	assert.Contains(t, out.String(), "ghcopilot/pkg/llm")
}

func TestCheckCmd_MissingModule(t *testing.T) {
	setupWorkspace(t)
	cfg.Translator.Module = "missing"

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	err := runCheck(cmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDiagnosticsCmd_Empty(t *testing.T) {
	setupWorkspace(t)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runDiagnostics(cmd, nil))
	assert.Contains(t, out.String(), "no diagnostics recorded")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("COPILOT_SCRIPTS", "")
	ws := t.TempDir()
	workspace = ws
	configPath = ""
	defer func() { workspace, configPath = "", "" }()

	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, config.DefaultConfigFile), configPath)
	assert.Equal(t, []string{filepath.Join(ws, "translators")}, c.Interpreter.SearchPaths)
}
