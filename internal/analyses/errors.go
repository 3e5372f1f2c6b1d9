package analyses

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"resumind-backend/internal/llm"
)

var (
	ErrNotFound          = errors.New("analysis not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrCancelled         = errors.New("analysis cancelled")
)

// Category classifies a pipeline failure.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryConversion    Category = "conversion"
	CategoryEmptyText     Category = "empty_text"
	CategoryTimeout       Category = "timeout"
	CategoryProvider      Category = "provider"
	CategoryEmptyResponse Category = "empty_response"
	CategoryParse         Category = "parse"
	CategoryPersistence   Category = "persistence"
)

// Retryable reports whether a failure of this category can be retried.
func (c Category) Retryable() bool {
	return c != CategoryValidation
}

// SkipEligible reports whether the run may continue without a report.
func (c Category) SkipEligible() bool {
	return c != CategoryValidation && c != CategoryPersistence
}

// Error is a categorized pipeline failure.
type Error struct {
	Category Category
	// Kind is set for provider failures.
	Kind    llm.ErrorKind
	Message string
	// RawPreview holds the start of an unparseable provider response.
	RawPreview string
	Err        error
}

func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (%s): %s", e.Category, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool    { return e.Category.Retryable() }
func (e *Error) SkipEligible() bool { return e.Category.SkipEligible() }

// AsError extracts a categorized pipeline failure from err.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func newError(category Category, err error, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  sanitizeError(fmt.Sprintf(format, args...)),
		Err:      err,
	}
}

func providerFailure(err error) *Error {
	var perr *llm.ProviderError
	if errors.As(err, &perr) {
		return &Error{
			Category: CategoryProvider,
			Kind:     perr.Kind,
			Message:  sanitizeError(perr.Message),
			Err:      err,
		}
	}
	return &Error{
		Category: CategoryProvider,
		Kind:     llm.KindUpstream,
		Message:  sanitizeError(err.Error()),
		Err:      err,
	}
}

// sanitizeError caps msg at 500 runes.
func sanitizeError(msg string) string {
	const limit = 500
	if utf8.RuneCountInString(msg) <= limit {
		return msg
	}
	return string([]rune(msg)[:limit])
}
