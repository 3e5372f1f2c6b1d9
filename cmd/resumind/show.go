package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"resumind-backend/internal/analyses"
)

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, done, err := buildApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer done()

			rec, err := app.Records.Load(cmd.Context(), args[0])
			if errors.Is(err, analyses.ErrNotFound) {
				return fmt.Errorf("no analysis with id %s", args[0])
			}
			if err != nil {
				return err
			}
			renderRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}
