package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vbonduro/envmon/internal/store"
)

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete every saved measurement with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid measurement id %q", args[0])
			}
			a, err := ctx.buildApp()
			if err != nil {
				return err
			}

			if _, err := a.store.Get(cmd.Context(), id); errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no measurement with id %d", id)
			}
			if err := a.service.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
			return nil
		},
	}
}
