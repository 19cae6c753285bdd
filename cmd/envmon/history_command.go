package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/vbonduro/envmon/internal/display"
	"github.com/vbonduro/envmon/internal/domain"
	"github.com/vbonduro/envmon/internal/service"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var withImages bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved measurements, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp()
			if err != nil {
				return err
			}
			entries := a.service.History(cmd.Context())

			if jsonOutput {
				out := make([]domain.Measurement, 0, len(entries))
				for _, e := range entries {
					m := e.Measurement
					if !withImages {
						m = stripImage(m)
					}
					out = append(out, m)
				}
				return writeJSON(cmd, out)
			}

			stdout := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(stdout, display.NoEntries)
				return nil
			}
			fmt.Fprintln(stdout, renderHistory(entries, a.printer, shouldColorize(stdout)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the stored records as JSON")
	cmd.Flags().BoolVar(&withImages, "with-images", false, "Include photo payloads in JSON output")
	return cmd
}

func renderHistory(entries []service.HistoryEntry, printer *display.Printer, colorize bool) string {
	headers := []string{"ID", "Date", "Noise", "GPS", "Age", "Photo"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		noiseText := e.NoiseText
		if colorize && e.Simulated {
			noiseText = text.Colors{text.FgYellow}.Sprint(noiseText)
		}
		photo := "-"
		if e.HasImage() {
			photo = printer.Size(len(e.ImageBase64) * 3 / 4)
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Date,
			noiseText,
			e.GPSText,
			e.Age,
			photo,
		})
	}
	return renderTable(headers, rows, aligns)
}
