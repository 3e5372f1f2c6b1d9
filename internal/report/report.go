// Package report holds the typed analysis report produced by an inference
// provider, its parser and the insights derived from it.
package report

// TipType marks a tip as a strength or an improvement.
type TipType string

const (
	TipGood    TipType = "good"
	TipImprove TipType = "improve"
)

// Tip is a single piece of feedback inside a Section.
type Tip struct {
	Type        TipType `json:"type"`
	Tip         string  `json:"tip"`
	Explanation string  `json:"explanation,omitempty"`
}

// Section is a scored report category.
type Section struct {
	Score int   `json:"score"`
	Tips  []Tip `json:"tips"`
}

// Report is the validated analysis result.
type Report struct {
	OverallScore int     `json:"overallScore"`
	ATS          Section `json:"ATS"`
	ToneAndStyle Section `json:"toneAndStyle"`
	Content      Section `json:"content"`
	Structure    Section `json:"structure"`
	Skills       Section `json:"skills"`
}

// SectionNames lists the required sections in their canonical order.
var SectionNames = []string{"ATS", "toneAndStyle", "content", "structure", "skills"}

// Sections returns the sections keyed by their JSON name.
func (r Report) Sections() map[string]Section {
	return map[string]Section{
		"ATS":          r.ATS,
		"toneAndStyle": r.ToneAndStyle,
		"content":      r.Content,
		"structure":    r.Structure,
		"skills":       r.Skills,
	}
}
