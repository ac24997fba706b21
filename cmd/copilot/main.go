package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ghcopilot/internal/config"
	"ghcopilot/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	timeout    time.Duration
	trace      bool

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "copilot - conversational component finder for node-graph canvases",
	Long: `copilot hosts a translator module in an embedded Go interpreter and
turns natural-language requests into component and connection suggestions.

Run without arguments to open the terminal canvas; press ctrl+k to open the panel.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		if err := logging.Initialize(cfg.Logging.Options(verbose)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runCanvas,
}

// askCmd runs one query through the pipeline
var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Ask the translator once and print the answer",
	Long: `Runs a single query through the whole pipeline (lock, translator, decode)
and prints the explanation followed by the suggested components and connections.

Example:
  copilot ask "add two numbers"
  copilot ask --raw "loft two curves"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// checkCmd verifies the translator module can be loaded
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve the translator module without calling it",
	RunE:  runCheck,
}

// diagnosticsCmd shows the diagnostics journal
var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics",
	Short: "Show recent failures recorded in the diagnostics journal",
	RunE:  runDiagnostics,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/copilot.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Translator timeout (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "Print OpenTelemetry spans to stderr")

	askCmd.Flags().Bool("raw", false, "Print the raw translator payload")
	diagnosticsCmd.Flags().Int("limit", 20, "Number of entries to show")
	diagnosticsCmd.Flags().Duration("prune", 0, "Delete entries older than this before listing")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(diagnosticsCmd)
}

// loadConfig reads the config file, resolves relative paths against the
// file's directory and applies flag overrides.
func loadConfig() (*config.Config, error) {
	ws := workspace
	if ws == "" {
		var err error
		if ws, err = os.Getwd(); err != nil {
			return nil, err
		}
	}
	path := configPath
	if path == "" {
		path = filepath.Join(ws, config.DefaultConfigFile)
	}

	c, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		c.Translator.Timeout = timeout.String()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.ResolvePaths(filepath.Dir(path))
	configPath = path
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
