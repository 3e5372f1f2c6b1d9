package analyses

import (
	"time"

	"resumind-backend/internal/document"
	"resumind-backend/internal/llm"
	"resumind-backend/internal/report"
)

// Request is the input of a single analysis run. It is not modified once
// handed to an Orchestrator.
type Request struct {
	Document       document.Document
	CompanyName    string
	JobTitle       string
	JobDescription string
	SkipAnalysis   bool
}

// Record is the persisted result of a run. Report stays nil until the
// provider output has been parsed, and forever when analysis was skipped.
// Skipped marks a record finished without analysis; a null report without
// it belongs to a run that never finished.
type Record struct {
	ID                string         `json:"id"`
	CreatedAt         time.Time      `json:"createdAt"`
	ImageReference    string         `json:"imageReference"`
	DocumentReference string         `json:"documentReference,omitempty"`
	CompanyName       string         `json:"companyName,omitempty"`
	JobTitle          string         `json:"jobTitle,omitempty"`
	JobDescription    string         `json:"jobDescription,omitempty"`
	Report            *report.Report `json:"report"`
	Skipped           bool           `json:"skipped,omitempty"`
}

// Stage is the externally visible pipeline state.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageConverting Stage = "converting"
	StageExtracting Stage = "extracting"
	StageInvoking   Stage = "invoking"
	StageParsing    Stage = "parsing"
	StagePersisting Stage = "persisting"
	StageSucceeded  Stage = "succeeded"
	StageFailed     Stage = "failed"
)

// State is a snapshot of an orchestrator. FailedAt and Err are set only when
// Stage is StageFailed.
type State struct {
	Stage    Stage
	FailedAt Stage
	Err      *Error
	// Skipped marks a success reached without a report.
	Skipped bool
}

// CanRetry reports whether Retry is allowed.
func (s State) CanRetry() bool {
	return s.Stage == StageFailed && s.Err != nil && s.Err.Retryable()
}

// CanSkip reports whether SkipAndProceed is allowed.
func (s State) CanSkip() bool {
	return s.Stage == StageFailed && s.Err != nil && s.Err.SkipEligible()
}

// CanCancel reports whether Cancel is allowed.
func (s State) CanCancel() bool {
	return s.Stage == StageFailed || s.Stage == StageInvoking
}

// View is the presentation form of a run.
type View struct {
	AnalysisID   string        `json:"analysisId"`
	Stage        Stage         `json:"stage"`
	StatusText   string        `json:"statusText"`
	FailedStage  Stage         `json:"failedStage,omitempty"`
	Category     Category      `json:"category,omitempty"`
	ProviderKind llm.ErrorKind `json:"providerKind,omitempty"`
	Error        string        `json:"error,omitempty"`
	RawPreview   string        `json:"rawPreview,omitempty"`
	Skipped      bool          `json:"skipped,omitempty"`
	CanRetry     bool          `json:"canRetry"`
	CanSkip      bool          `json:"canSkip"`
	CanCancel    bool          `json:"canCancel"`
}

// NewView renders s for the run id.
func NewView(id string, s State) View {
	v := View{
		AnalysisID: id,
		Stage:      s.Stage,
		StatusText: StatusText(s),
		Skipped:    s.Skipped,
		CanRetry:   s.CanRetry(),
		CanSkip:    s.CanSkip(),
		CanCancel:  s.CanCancel(),
	}
	if s.Stage == StageIdle && id != "" {
		v.StatusText = "Analysis cancelled"
	}
	if s.Stage == StageFailed && s.Err != nil {
		v.FailedStage = s.FailedAt
		v.Category = s.Err.Category
		v.ProviderKind = s.Err.Kind
		v.Error = s.Err.Message
		v.RawPreview = s.Err.RawPreview
	}
	return v
}

// StatusText is the human readable line shown while a run progresses.
func StatusText(s State) string {
	switch s.Stage {
	case StageConverting:
		return "Converting PDF to image..."
	case StageExtracting:
		return "Extracting resume text..."
	case StageInvoking:
		return "Analyzing resume (30-60 seconds)..."
	case StageParsing:
		return "Parsing analysis results..."
	case StagePersisting:
		return "Saving analysis..."
	case StageSucceeded:
		if s.Skipped {
			return "Saved without analysis"
		}
		return "Analysis complete"
	case StageFailed:
		if s.Err != nil {
			return s.Err.Message
		}
		return "Analysis failed"
	default:
		return "Ready"
	}
}
