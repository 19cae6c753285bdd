package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbonduro/envmon/internal/domain"
	"github.com/vbonduro/envmon/internal/sensor/location"
	"github.com/vbonduro/envmon/internal/service"
)

func newMeasureCommand(ctx *commandContext) *cobra.Command {
	var withPhoto bool
	var skipLocation bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Take one measurement and save it",
		Long: "Reads the last-known location, samples the microphone for one window, " +
			"optionally captures a photo, and appends the result to the history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			stderr := cmd.ErrOrStderr()

			if !skipLocation {
				if _, err := a.service.AcquireLocation(runCtx); err != nil &&
					!errorsIsAny(err, location.ErrNoFix, service.ErrPermissionDenied) {
					return err
				}
			}

			readings, err := a.service.MeasureNoise(runCtx)
			if err == nil {
				select {
				case <-readings:
				case <-runCtx.Done():
					return runCtx.Err()
				}
			}

			if withPhoto {
				if err := a.service.CapturePhoto(runCtx); err != nil {
					a.logger.Warn("continuing without photo", "error", err)
				}
				defer func() {
					if err := a.service.DiscardPhoto(runCtx); err != nil {
						a.logger.Warn("failed to discard spooled photo", "error", err)
					}
				}()
			}

			m, saveErr := a.service.Save(runCtx)

			state := a.service.State()
			fmt.Fprintf(stderr, "Location: %s\n", state.LocationText)
			fmt.Fprintf(stderr, "Noise: %s\n", state.NoiseText)
			for _, n := range a.service.TakeNotices() {
				fmt.Fprintln(stderr, n.Text)
			}
			if saveErr != nil {
				return saveErr
			}

			if jsonOutput {
				return writeJSON(cmd, stripImage(m))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", m.ID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withPhoto, "photo", false, "Capture a photo with the configured camera")
	cmd.Flags().BoolVar(&skipLocation, "no-location", false, "Do not read the location source")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the saved measurement as JSON")
	return cmd
}

// stripImage replaces a photo payload with nothing so JSON output stays
// readable.
func stripImage(m domain.Measurement) domain.Measurement {
	m.ImageBase64 = ""
	return m
}
