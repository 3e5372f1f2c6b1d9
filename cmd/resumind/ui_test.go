package main

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumind-backend/internal/analyses"
	"resumind-backend/internal/llm"
	"resumind-backend/internal/report"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestRenderRecordWithReport(t *testing.T) {
	sample := report.Sample()
	rec := analyses.Record{
		ID:          "abc",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		CompanyName: "Acme",
		JobTitle:    "Engineer",
		Report:      &sample,
	}
	var buf bytes.Buffer
	renderRecord(&buf, rec)

	out := buf.String()
	assert.Contains(t, out, "ANALYSIS abc")
	assert.Contains(t, out, "Company: Acme")
	assert.Contains(t, out, "Role: Engineer")
	assert.Contains(t, out, "Overall score: 75/100")
	assert.Contains(t, out, "Tone & Style")
	assert.Contains(t, out, "✓ Good use of keywords")
	assert.NotContains(t, out, "Saved without analysis")
}

func TestRenderRecordWithoutReport(t *testing.T) {
	var buf bytes.Buffer
	renderRecord(&buf, analyses.Record{ID: "abc", CreatedAt: time.Now()})

	out := buf.String()
	assert.Contains(t, out, "Saved without analysis")
	assert.NotContains(t, out, "Company:")
	assert.NotContains(t, out, "Overall score")
}

func TestRenderFailure(t *testing.T) {
	var buf bytes.Buffer
	renderFailure(&buf, analyses.View{Error: "Could not parse analysis", RawPreview: "not json"})
	assert.Equal(t, "✗ Could not parse analysis\n  Response started with: not json\n", buf.String())
}

func TestParseAction(t *testing.T) {
	full := analyses.View{CanRetry: true, CanSkip: true}
	tests := []struct {
		name   string
		input  string
		view   analyses.View
		want   action
		wantOK bool
	}{
		{name: "retry", input: "r\n", view: full, want: actionRetry, wantOK: true},
		{name: "retry word", input: " Retry ", view: full, want: actionRetry, wantOK: true},
		{name: "skip", input: "s", view: full, want: actionSkip, wantOK: true},
		{name: "cancel", input: "c", view: full, want: actionCancel, wantOK: true},
		{name: "quit", input: "q", view: analyses.View{}, want: actionCancel, wantOK: true},
		{name: "skip not allowed", input: "s", view: analyses.View{CanRetry: true}, want: actionSkip, wantOK: false},
		{name: "retry not allowed", input: "r", view: analyses.View{}, want: actionRetry, wantOK: false},
		{name: "unknown", input: "x", view: full, want: actionCancel, wantOK: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseAction(tt.input, tt.view)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAskActionRepromptsUntilValid(t *testing.T) {
	var out bytes.Buffer
	in := bufio.NewReader(strings.NewReader("x\ns\nr\n"))
	got := askAction(&out, in, analyses.View{CanRetry: true})

	assert.Equal(t, actionRetry, got)
	assert.Equal(t, 3, strings.Count(out.String(), "[r]etry, [c]ancel: "))
}

func TestAskActionCancelsOnEOF(t *testing.T) {
	var out bytes.Buffer
	got := askAction(&out, bufio.NewReader(strings.NewReader("")), analyses.View{CanRetry: true, CanSkip: true})
	assert.Equal(t, actionCancel, got)
	assert.Contains(t, out.String(), "[s]kip analysis")
}

func TestBuildRequest(t *testing.T) {
	dir := t.TempDir()
	resume := filepath.Join(dir, "cv.pdf")
	jd := filepath.Join(dir, "jd.txt")
	require.NoError(t, os.WriteFile(resume, []byte("%PDF-1.4"), 0o600))
	require.NoError(t, os.WriteFile(jd, []byte("Build services in Go"), 0o600))

	req, err := buildRequest(&analyzeOptions{company: "Acme", jd: "ignored", jdFile: jd, skip: true}, resume)
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", req.Document.Name)
	assert.Equal(t, "Build services in Go", req.JobDescription)
	assert.Equal(t, "Acme", req.CompanyName)
	assert.True(t, req.SkipAnalysis)

	_, err = buildRequest(&analyzeOptions{}, filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestSampleProviderReturnsParsableReport(t *testing.T) {
	var p llm.Provider = sampleProvider{}
	require.True(t, p.IsConfigured())

	raw, err := p.Invoke(context.Background(), llm.Payload{})
	require.NoError(t, err)
	got, err := report.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, report.Sample().OverallScore, got.OverallScore)
}
