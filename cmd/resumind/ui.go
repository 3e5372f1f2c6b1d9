package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"resumind-backend/internal/analyses"
	"resumind-backend/internal/report"
)

// progress mirrors pipeline transitions on a spinner.
type progress struct {
	s *spinner.Spinner
}

func newProgress(w io.Writer) *progress {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	return &progress{s: s}
}

func (p *progress) observe(v analyses.View) {
	switch v.Stage {
	case analyses.StageSucceeded, analyses.StageFailed, analyses.StageIdle:
		p.s.Stop()
	default:
		p.s.Lock()
		p.s.Suffix = " " + v.StatusText
		p.s.Unlock()
		if !p.s.Active() {
			p.s.Start()
		}
	}
}

func (p *progress) stop() {
	p.s.Stop()
}

func scoreColor(score int) *color.Color {
	switch {
	case score >= 80:
		return color.New(color.FgGreen, color.Bold)
	case score >= 60:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

var sectionTitles = map[string]string{
	"ATS":          "ATS",
	"toneAndStyle": "Tone & Style",
	"content":      "Content",
	"structure":    "Structure",
	"skills":       "Skills",
}

func renderRecord(w io.Writer, rec analyses.Record) {
	heading := color.New(color.FgMagenta, color.Bold)
	label := color.New(color.FgYellow)

	heading.Fprintf(w, "━━━ ANALYSIS %s ━━━\n", rec.ID)
	label.Fprint(w, "  Created: ")
	fmt.Fprintln(w, rec.CreatedAt.Local().Format(time.RFC1123))
	if rec.CompanyName != "" {
		label.Fprint(w, "  Company: ")
		fmt.Fprintln(w, rec.CompanyName)
	}
	if rec.JobTitle != "" {
		label.Fprint(w, "  Role: ")
		fmt.Fprintln(w, rec.JobTitle)
	}
	if rec.ImageReference != "" {
		label.Fprint(w, "  Preview: ")
		fmt.Fprintln(w, rec.ImageReference)
	}
	fmt.Fprintln(w)

	if rec.Report == nil {
		color.New(color.FgCyan).Fprintln(w, "ℹ Saved without analysis")
		return
	}
	renderReport(w, *rec.Report)
}

func renderReport(w io.Writer, r report.Report) {
	insights := report.Derive(r)
	label := color.New(color.FgYellow)

	label.Fprint(w, "  Overall score: ")
	scoreColor(r.OverallScore).Fprintf(w, "%d/100\n", r.OverallScore)
	label.Fprint(w, "  Job fit: ")
	scoreColor(insights.FitScore).Fprintf(w, "%d/100 ", insights.FitScore)
	fmt.Fprintf(w, "(%s)\n\n", insights.FitLabel)

	sections := r.Sections()
	for _, name := range report.SectionNames {
		section := sections[name]
		color.New(color.FgCyan, color.Bold).Fprintf(w, "%s ", sectionTitles[name])
		scoreColor(section.Score).Fprintf(w, "%d\n", section.Score)
		for _, tip := range section.Tips {
			if tip.Type == report.TipGood {
				color.New(color.FgGreen).Fprintf(w, "  ✓ %s\n", tip.Tip)
			} else {
				color.New(color.FgYellow).Fprintf(w, "  ⚠ %s\n", tip.Tip)
			}
			if tip.Explanation != "" {
				fmt.Fprintf(w, "      %s\n", tip.Explanation)
			}
		}
	}

	if len(insights.Recommendations) > 0 {
		fmt.Fprintln(w)
		color.New(color.FgMagenta, color.Bold).Fprintln(w, "Recommendations")
		for _, rec := range insights.Recommendations {
			fmt.Fprintf(w, "  → %s\n", rec)
		}
	}
	if len(insights.Skills.Matched)+len(insights.Skills.Missing) > 0 {
		fmt.Fprintln(w)
		color.New(color.FgMagenta, color.Bold).Fprintln(w, "Skills")
		if len(insights.Skills.Matched) > 0 {
			fmt.Fprintf(w, "  Matched: %s\n", strings.Join(insights.Skills.Matched, ", "))
		}
		if len(insights.Skills.Missing) > 0 {
			fmt.Fprintf(w, "  Missing: %s\n", strings.Join(insights.Skills.Missing, ", "))
		}
	}
}

func renderFailure(w io.Writer, v analyses.View) {
	color.New(color.FgRed).Fprintf(w, "✗ %s\n", v.Error)
	if v.RawPreview != "" {
		fmt.Fprintf(w, "  Response started with: %s\n", v.RawPreview)
	}
}
