package main

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"resumind-backend/internal/bootstrap"
	"resumind-backend/internal/shared/config"
	"resumind-backend/internal/shared/telemetry"
)

type rootOptions struct {
	verbose bool
	noColor bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "resumind",
		Short: "Analyze resumes from the command line",
		Long: `resumind converts a resume, extracts its text, asks the configured
inference provider for a structured review and stores the result.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print structured logs")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(newAnalyzeCmd(opts), newShowCmd(opts), newProviderCmd(opts))
	return cmd
}

// buildApp wires the shared dependencies. Logs are discarded unless verbose
// so they do not interleave with the spinner.
func buildApp(ctx context.Context, opts *rootOptions) (*bootstrap.App, func(), error) {
	logOut := io.Discard
	if opts.verbose {
		logOut = os.Stderr
	}
	restore := telemetry.SetOutput(logOut)
	app, err := bootstrap.Build(ctx, config.Load())
	if err != nil {
		restore()
		return nil, nil, err
	}
	return app, func() {
		app.Close()
		restore()
	}, nil
}
