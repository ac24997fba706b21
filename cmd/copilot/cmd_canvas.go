package main

import (
	"context"
	"fmt"

	"ghcopilot/cmd/copilot/canvas"
	"ghcopilot/internal/config"
	"ghcopilot/internal/logging"
	"ghcopilot/internal/panel"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// runCanvas starts the interactive terminal canvas
func runCanvas(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, newHost())
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := config.NewWatcher(configPath, a.reload)
	if err == nil {
		if err := w.Start(ctx); err != nil {
			logging.Get(logging.CategoryConfig).Warn("config hot reload disabled: %v", err)
		}
		defer w.Stop()
	}

	model := canvas.New(canvas.Options{
		Runner:     a.pipeline,
		Settings:   a.settings,
		Sink:       a.sink,
		OpenChord:  cfg.Panel.OpenChord,
		CloseChord: cfg.Panel.CloseChord,
		PanelSize:  panel.Size{W: cfg.Panel.Width, H: cfg.Panel.Height},
	})
	defer model.Shutdown()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("canvas: %w", err)
	}
	return nil
}
