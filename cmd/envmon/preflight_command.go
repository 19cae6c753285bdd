package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/vbonduro/envmon/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check access to the location source, camera, microphone and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp()
			if err != nil {
				return err
			}
			results := a.checker.RunAll(cmd.Context())

			stdout := cmd.OutOrStdout()
			fmt.Fprintln(stdout, renderPreflight(results, shouldColorize(stdout)))
			if !preflight.AllPassed(results) {
				return fmt.Errorf("missing permissions: %s", strings.Join(preflight.Failed(results), ", "))
			}
			return nil
		},
	}
}

func renderPreflight(results []preflight.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		color := text.FgGreen
		if !r.Passed {
			status = "missing"
			color = text.FgRed
		}
		if colorize {
			status = text.Colors{color}.Sprint(status)
		}
		rows = append(rows, []string{r.Name, status, r.Detail})
	}
	return renderTable([]string{"Check", "Status", "Detail"}, rows, nil)
}
