package main

import (
	"errors"
	"fmt"
	"time"

	"ghcopilot/internal/diagnostics"

	"github.com/spf13/cobra"
)

func runDiagnostics(cmd *cobra.Command, args []string) error {
	if cfg.Diagnostics.JournalPath == "" {
		return errors.New("diagnostics journal is disabled (diagnostics.journal_path is empty)")
	}
	j, err := diagnostics.OpenJournal(cfg.Diagnostics.JournalPath)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmdContext(cmd)
	out := cmd.OutOrStdout()

	if prune, _ := cmd.Flags().GetDuration("prune"); prune > 0 {
		n, err := j.Prune(ctx, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pruned %d entries\n", n)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	items, err := j.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(out, "no diagnostics recorded")
		return nil
	}
	for _, d := range items {
		fmt.Fprintf(out, "%s %s\n", d.At.Format(time.DateTime), d)
	}
	return nil
}
