package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ghcopilot/internal/interp"

	"github.com/spf13/cobra"
)

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, newHost())
	if err != nil {
		return err
	}
	defer a.close()

	q := a.settings()
	q.Text = strings.Join(args, " ")

	res, err := a.pipeline.Run(cmdContext(cmd), q)
	raw, _ := cmd.Flags().GetBool("raw")
	out := cmd.OutOrStdout()

	if err != nil {
		a.report(err)
		if raw && res.Raw != "" {
			fmt.Fprintln(out, res.Raw)
		}
		return errors.New(describe(err))
	}

	if raw {
		fmt.Fprintln(out, res.Raw)
		return nil
	}

	fmt.Fprintln(out, res.Response.Explanation)
	if names := res.Response.ComponentNames(); len(names) > 0 {
		fmt.Fprintln(out, "\nComponents:")
		for _, n := range names {
			fmt.Fprintf(out, "  - %s\n", n)
		}
	}
	if lines := res.Response.ConnectionLines(); len(lines) > 0 {
		fmt.Fprintln(out, "\nConnections:")
		for _, l := range lines {
			fmt.Fprintf(out, "  - %s\n", l)
		}
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, newHost())
	if err != nil {
		return err
	}
	defer a.close()

	err = a.host.Gateway().Do(cmdContext(cmd), func(ctx context.Context, rt *interp.Runtime) error {
		return a.client.Check(ctx, rt)
	})
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "module:       %s\n", a.client.Module())
	fmt.Fprintf(out, "search paths: %s\n", strings.Join(a.host.SearchPaths(), ", "))
	fmt.Fprintf(out, "imports:      %s\n", strings.Join(a.host.AllowedImports(), ", "))
	if err != nil {
		a.report(err)
		return errors.New(describe(err))
	}
	fmt.Fprintln(out, "status:       ok")
	return nil
}
