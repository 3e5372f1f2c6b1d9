package report

import "math"

// FitScore weights ATS, skills, content and tone into an interview likelihood.
func FitScore(r Report) int {
	score := float64(r.ATS.Score)*0.4 +
		float64(r.Skills.Score)*0.3 +
		float64(r.Content.Score)*0.2 +
		float64(r.ToneAndStyle.Score)*0.1
	return int(math.Round(score))
}

// FitLabel buckets a fit score.
func FitLabel(score int) string {
	switch {
	case score >= 85:
		return "Excellent"
	case score >= 70:
		return "Good"
	case score >= 55:
		return "Moderate"
	case score >= 40:
		return "Fair"
	default:
		return "Needs Work"
	}
}

// Recommendations returns the threshold-based follow-ups for a report.
func Recommendations(r Report) []string {
	recs := []string{}
	if r.ATS.Score < 70 {
		recs = append(recs, "Optimize keywords to improve ATS score")
	}
	if r.Skills.Score < 70 {
		recs = append(recs, "Highlight more relevant technical skills")
	}
	if r.Content.Score < 70 {
		recs = append(recs, "Enhance description of achievements and impact")
	}
	if r.Structure.Score < 70 {
		recs = append(recs, "Reorganize resume sections for better flow")
	}
	if r.ATS.Score > 75 && r.Skills.Score > 75 {
		recs = append(recs, "Your resume is well-aligned. Consider customizing for role-specific keywords")
	}
	return recs
}

// Skills groups skill tips into matched and missing lists.
type Skills struct {
	Matched []string `json:"matched"`
	Missing []string `json:"missing"`
}

// SkillHighlights takes the first three distinct good and improve tips of the skills section.
func SkillHighlights(r Report) Skills {
	return Skills{
		Matched: firstDistinct(r.Skills.Tips, TipGood, 3),
		Missing: firstDistinct(r.Skills.Tips, TipImprove, 3),
	}
}

func firstDistinct(tips []Tip, kind TipType, limit int) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, tip := range tips {
		if tip.Type != kind {
			continue
		}
		if _, ok := seen[tip.Tip]; ok {
			continue
		}
		seen[tip.Tip] = struct{}{}
		out = append(out, tip.Tip)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Insights bundles the values derived from a Report.
type Insights struct {
	FitScore        int      `json:"fitScore"`
	FitLabel        string   `json:"fitLabel"`
	Recommendations []string `json:"recommendations"`
	Skills          Skills   `json:"skills"`
}

// Derive computes all insights for r.
func Derive(r Report) Insights {
	score := FitScore(r)
	return Insights{
		FitScore:        score,
		FitLabel:        FitLabel(score),
		Recommendations: Recommendations(r),
		Skills:          SkillHighlights(r),
	}
}
