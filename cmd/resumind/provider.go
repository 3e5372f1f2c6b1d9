package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"resumind-backend/internal/llm"
)

func newProviderCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "provider",
		Short: "Show the configured inference provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, done, err := buildApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer done()

			status := llm.StatusOf(app.Provider)
			out := cmd.OutOrStdout()
			color.New(color.Bold).Fprintf(out, "Provider: ")
			color.New(color.FgCyan).Fprintf(out, "%s (%s)\n", status.Provider, status.Model)
			if status.Configured {
				color.New(color.FgGreen).Fprintln(out, "✓ configured")
			} else {
				color.New(color.FgRed).Fprintln(out, "✗ not configured, set the API key for this provider")
			}
			return nil
		},
	}
}
