package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"resumind-backend/internal/analyses"
	"resumind-backend/internal/document"
	"resumind-backend/internal/llm"
	"resumind-backend/internal/report"
)

type analyzeOptions struct {
	company  string
	title    string
	jd       string
	jdFile   string
	skip     bool
	sample   bool
	noPrompt bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a resume and store the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().StringVar(&opts.company, "company", "", "company name")
	cmd.Flags().StringVar(&opts.title, "title", "", "job title")
	cmd.Flags().StringVar(&opts.jd, "jd", "", "job description")
	cmd.Flags().StringVar(&opts.jdFile, "jd-file", "", "read the job description from a file")
	cmd.Flags().BoolVar(&opts.skip, "skip", false, "store the resume without analysis")
	cmd.Flags().BoolVar(&opts.sample, "sample", false, "use a canned report instead of the configured provider")
	cmd.Flags().BoolVar(&opts.noPrompt, "no-prompt", false, "exit on failure instead of asking what to do")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, path string) error {
	ctx := cmd.Context()
	req, err := buildRequest(opts, path)
	if err != nil {
		return err
	}

	app, done, err := buildApp(ctx, root)
	if err != nil {
		return err
	}
	defer done()

	if opts.sample {
		app.Provider = sampleProvider{}
	}
	bar := newProgress(cmd.ErrOrStderr())
	defer bar.stop()
	orch := app.NewOrchestrator(analyses.WithObserver(bar.observe))

	out := cmd.OutOrStdout()
	id, runErr := orch.Run(ctx, req)
	if id == "" {
		return runErr
	}
	prompt := bufio.NewReader(cmd.InOrStdin())
	for runErr != nil {
		if errors.Is(runErr, analyses.ErrCancelled) {
			color.New(color.FgYellow).Fprintln(out, "⚠ Analysis cancelled")
			return nil
		}
		view := orch.View()
		renderFailure(out, view)
		if opts.noPrompt {
			return runErr
		}

		switch askAction(out, prompt, view) {
		case actionRetry:
			runErr = orch.Retry(ctx)
		case actionSkip:
			runErr = orch.SkipAndProceed(ctx)
		default:
			if err := orch.Cancel(); err != nil {
				return err
			}
			color.New(color.FgYellow).Fprintln(out, "⚠ Analysis cancelled")
			return nil
		}
	}

	rec, err := app.Records.Load(ctx, id)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(out, "✓ Saved analysis %s\n\n", id)
	renderRecord(out, rec)
	return nil
}

func buildRequest(opts *analyzeOptions, path string) (analyses.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analyses.Request{}, fmt.Errorf("read resume: %w", err)
	}
	jd := opts.jd
	if opts.jdFile != "" {
		raw, err := os.ReadFile(opts.jdFile)
		if err != nil {
			return analyses.Request{}, fmt.Errorf("read job description: %w", err)
		}
		jd = string(raw)
	}
	return analyses.Request{
		Document: document.Document{
			Name: filepath.Base(path),
			Data: data,
		},
		CompanyName:    opts.company,
		JobTitle:       opts.title,
		JobDescription: jd,
		SkipAnalysis:   opts.skip,
	}, nil
}

type action int

const (
	actionCancel action = iota
	actionRetry
	actionSkip
)

// askAction offers the actions the failed run allows. EOF cancels.
func askAction(w io.Writer, r *bufio.Reader, v analyses.View) action {
	var choices []string
	if v.CanRetry {
		choices = append(choices, "[r]etry")
	}
	if v.CanSkip {
		choices = append(choices, "[s]kip analysis")
	}
	choices = append(choices, "[c]ancel")

	for {
		fmt.Fprintf(w, "%s: ", strings.Join(choices, ", "))
		line, err := r.ReadString('\n')
		if a, ok := parseAction(line, v); ok {
			return a
		}
		if err != nil {
			fmt.Fprintln(w)
			return actionCancel
		}
	}
}

func parseAction(input string, v analyses.View) (action, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "r", "retry":
		return actionRetry, v.CanRetry
	case "s", "skip":
		return actionSkip, v.CanSkip
	case "c", "cancel", "q", "quit":
		return actionCancel, true
	}
	return actionCancel, false
}

// sampleProvider answers every call with the canned report.
type sampleProvider struct{}

func (sampleProvider) Name() string       { return "sample" }
func (sampleProvider) Model() string      { return "sample" }
func (sampleProvider) IsConfigured() bool { return true }

func (sampleProvider) Invoke(ctx context.Context, payload llm.Payload) (string, error) {
	raw, err := json.Marshal(report.Sample())
	if err != nil {
		return "", err
	}
	return "```json\n" + string(raw) + "\n```", nil
}
