package report

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitScoreWeights(t *testing.T) {
	rep := Sample()
	// 78*.4 + 70*.3 + 72*.2 + 80*.1 = 74.6
	require.Equal(t, 75, FitScore(rep))
}

func TestFitLabel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{score: 100, want: "Excellent"},
		{score: 85, want: "Excellent"},
		{score: 84, want: "Good"},
		{score: 70, want: "Good"},
		{score: 55, want: "Moderate"},
		{score: 40, want: "Fair"},
		{score: 39, want: "Needs Work"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FitLabel(tt.score), "score %d", tt.score)
	}
}

func TestRecommendations(t *testing.T) {
	rep := Sample()
	require.Empty(t, Recommendations(rep))

	rep.ATS.Score = 60
	rep.Structure.Score = 50
	require.Equal(t, []string{
		"Optimize keywords to improve ATS score",
		"Reorganize resume sections for better flow",
	}, Recommendations(rep))

	rep = Sample()
	rep.ATS.Score = 90
	rep.Skills.Score = 80
	require.Equal(t, []string{
		"Your resume is well-aligned. Consider customizing for role-specific keywords",
	}, Recommendations(rep))
}

func TestSkillHighlightsDistinctAndCapped(t *testing.T) {
	rep := Sample()
	rep.Skills.Tips = []Tip{
		{Type: TipGood, Tip: "Go"},
		{Type: TipGood, Tip: "Go"},
		{Type: TipImprove, Tip: "Kubernetes"},
		{Type: TipGood, Tip: "SQL"},
		{Type: TipGood, Tip: "AWS"},
		{Type: TipGood, Tip: "Terraform"},
	}
	got := SkillHighlights(rep)
	require.Equal(t, []string{"Go", "SQL", "AWS"}, got.Matched)
	require.Equal(t, []string{"Kubernetes"}, got.Missing)
}

func TestDerive(t *testing.T) {
	got := Derive(Sample())
	require.Equal(t, 75, got.FitScore)
	require.Equal(t, "Good", got.FitLabel)
	require.Equal(t, []string{"Relevant skills listed"}, got.Skills.Matched)
}
