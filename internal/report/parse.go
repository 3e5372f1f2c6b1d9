package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const rawPreviewLimit = 150

var (
	fenceOpen  = regexp.MustCompile("^\\s*```(?i:json)?[ \\t]*\\n?")
	fenceClose = regexp.MustCompile("\\n?[ \\t]*```\\s*$")
)

// ParseError reports a raw provider response that is not a valid Report.
type ParseError struct {
	Reason     string
	RawPreview string
	Err        error
}

func (e *ParseError) Error() string {
	if e.RawPreview == "" {
		return fmt.Sprintf("failed to parse analysis response: %s", e.Reason)
	}
	return fmt.Sprintf("failed to parse analysis response: %s (raw: %s)", e.Reason, e.RawPreview)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StripFences removes a leading ``` or ```json marker, a trailing ``` marker
// and surrounding whitespace. Backticks inside the body are kept.
func StripFences(raw string) string {
	out := fenceOpen.ReplaceAllString(raw, "")
	out = fenceClose.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// Preview returns at most 150 runes of raw, marking truncation with "...".
func Preview(raw string) string {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) <= rawPreviewLimit {
		return raw
	}
	runes := []rune(raw)
	return string(runes[:rawPreviewLimit]) + "..."
}

type wireSection struct {
	Score *float64 `json:"score"`
	Tips  []Tip    `json:"tips"`
}

type wireReport struct {
	OverallScore *float64     `json:"overallScore"`
	ATS          *wireSection `json:"ATS"`
	ToneAndStyle *wireSection `json:"toneAndStyle"`
	Content      *wireSection `json:"content"`
	Structure    *wireSection `json:"structure"`
	Skills       *wireSection `json:"skills"`
}

// Parse strips code fences from raw and decodes it into a validated Report.
func Parse(raw string) (Report, error) {
	cleaned := StripFences(raw)
	if cleaned == "" {
		return Report{}, &ParseError{Reason: "empty response", RawPreview: Preview(raw)}
	}

	var wire wireReport
	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	if err := dec.Decode(&wire); err != nil {
		return Report{}, &ParseError{Reason: "invalid json", RawPreview: Preview(raw), Err: err}
	}
	if dec.More() {
		return Report{}, &ParseError{Reason: "trailing data after json object", RawPreview: Preview(raw)}
	}

	rep, err := wire.toReport()
	if err != nil {
		return Report{}, &ParseError{Reason: err.Error(), RawPreview: Preview(raw), Err: err}
	}
	if err := Validate(rep); err != nil {
		return Report{}, &ParseError{Reason: err.Error(), RawPreview: Preview(raw), Err: err}
	}
	return rep, nil
}

func (w wireReport) toReport() (Report, error) {
	if w.OverallScore == nil {
		return Report{}, errors.New("missing overallScore")
	}
	overall, err := toScore("overallScore", *w.OverallScore)
	if err != nil {
		return Report{}, err
	}
	rep := Report{OverallScore: overall}

	fields := []struct {
		name string
		src  *wireSection
		dst  *Section
	}{
		{"ATS", w.ATS, &rep.ATS},
		{"toneAndStyle", w.ToneAndStyle, &rep.ToneAndStyle},
		{"content", w.Content, &rep.Content},
		{"structure", w.Structure, &rep.Structure},
		{"skills", w.Skills, &rep.Skills},
	}
	for _, f := range fields {
		if f.src == nil {
			return Report{}, fmt.Errorf("missing section %s", f.name)
		}
		if f.src.Score == nil {
			return Report{}, fmt.Errorf("missing %s.score", f.name)
		}
		score, err := toScore(f.name+".score", *f.src.Score)
		if err != nil {
			return Report{}, err
		}
		tips := f.src.Tips
		if tips == nil {
			tips = []Tip{}
		}
		*f.dst = Section{Score: score, Tips: tips}
	}
	return rep, nil
}

func toScore(field string, v float64) (int, error) {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return 0, fmt.Errorf("%s out of range: %v", field, v)
	}
	return int(math.Round(v)), nil
}

// Validate checks score ranges and tip shapes of an already decoded Report.
func Validate(r Report) error {
	if r.OverallScore < 0 || r.OverallScore > 100 {
		return fmt.Errorf("overallScore out of range: %d", r.OverallScore)
	}
	sections := r.Sections()
	for _, name := range SectionNames {
		sec := sections[name]
		if sec.Score < 0 || sec.Score > 100 {
			return fmt.Errorf("%s.score out of range: %d", name, sec.Score)
		}
		for i, tip := range sec.Tips {
			if tip.Type != TipGood && tip.Type != TipImprove {
				return fmt.Errorf("%s.tips[%d].type must be good or improve", name, i)
			}
			if strings.TrimSpace(tip.Tip) == "" {
				return fmt.Errorf("%s.tips[%d].tip is empty", name, i)
			}
		}
	}
	return nil
}
