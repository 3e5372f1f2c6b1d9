package llm

import (
	_ "embed"
	"strings"
)

//go:embed prompts/analysis.txt
var analysisPrompt string

// Instructions renders the analysis prompt for the target role.
func Instructions(jobTitle, jobDescription string) string {
	title := strings.TrimSpace(jobTitle)
	if title == "" {
		title = "N/A"
	}
	jd := strings.TrimSpace(jobDescription)
	if jd == "" {
		jd = "N/A"
	}
	replacer := strings.NewReplacer(
		"{{JOB_TITLE}}", title,
		"{{JOB_DESCRIPTION}}", jd,
	)
	return strings.TrimSpace(replacer.Replace(analysisPrompt))
}
