package analyses

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"resumind-backend/internal/llm"
)

func TestCategoryFlags(t *testing.T) {
	tests := []struct {
		category  Category
		retryable bool
		skippable bool
	}{
		{CategoryValidation, false, false},
		{CategoryConversion, true, true},
		{CategoryEmptyText, true, true},
		{CategoryTimeout, true, true},
		{CategoryProvider, true, true},
		{CategoryEmptyResponse, true, true},
		{CategoryParse, true, true},
		{CategoryPersistence, true, false},
	}
	for _, tt := range tests {
		if got := tt.category.Retryable(); got != tt.retryable {
			t.Fatalf("%s retryable: expected %v, got %v", tt.category, tt.retryable, got)
		}
		if got := tt.category.SkipEligible(); got != tt.skippable {
			t.Fatalf("%s skip eligible: expected %v, got %v", tt.category, tt.skippable, got)
		}
	}
}

func TestStatusTextPerStage(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{State{Stage: StageConverting}, "Converting PDF to image..."},
		{State{Stage: StageExtracting}, "Extracting resume text..."},
		{State{Stage: StageInvoking}, "Analyzing resume (30-60 seconds)..."},
		{State{Stage: StageParsing}, "Parsing analysis results..."},
		{State{Stage: StagePersisting}, "Saving analysis..."},
		{State{Stage: StageSucceeded}, "Analysis complete"},
		{State{Stage: StageSucceeded, Skipped: true}, "Saved without analysis"},
		{State{Stage: StageFailed, Err: &Error{Category: CategoryTimeout, Message: "took too long"}}, "took too long"},
	}
	for _, tt := range tests {
		if got := StatusText(tt.state); got != tt.want {
			t.Fatalf("%s: expected %q, got %q", tt.state.Stage, tt.want, got)
		}
	}
}

func TestNewViewFlags(t *testing.T) {
	failed := State{
		Stage:    StageFailed,
		FailedAt: StageInvoking,
		Err:      &Error{Category: CategoryProvider, Kind: llm.KindRateLimited, Message: "slow down"},
	}
	v := NewView("id-1", failed)
	if !v.CanRetry || !v.CanSkip || !v.CanCancel {
		t.Fatalf("unexpected flags: %+v", v)
	}
	if v.Category != CategoryProvider || v.ProviderKind != llm.KindRateLimited || v.FailedStage != StageInvoking {
		t.Fatalf("unexpected failure fields: %+v", v)
	}

	invoking := NewView("id-1", State{Stage: StageInvoking})
	if invoking.CanRetry || invoking.CanSkip || !invoking.CanCancel {
		t.Fatalf("unexpected invoking flags: %+v", invoking)
	}
	parsing := NewView("id-1", State{Stage: StageParsing})
	if parsing.CanCancel {
		t.Fatalf("cancel is only allowed while invoking or failed")
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := llm.StatusError("gemini", 401, "")
	perr := providerFailure(cause)
	if !errors.Is(perr, cause) {
		t.Fatalf("provider failure should wrap its cause")
	}
	if perr.Kind != llm.KindUnauthorized {
		t.Fatalf("unexpected kind %s", perr.Kind)
	}
	if !strings.Contains(perr.Error(), "unauthorized") {
		t.Fatalf("unexpected message %q", perr.Error())
	}

	long := newError(CategoryParse, nil, "%s", strings.Repeat("x", 900))
	if len(long.Message) != 500 {
		t.Fatalf("messages should be capped, got %d", len(long.Message))
	}
}

func TestBackgroundWithRequestID(t *testing.T) {
	ctx, cancel := context.WithCancel(WithRequestID(context.Background(), "req-1"))
	cancel()

	bg := backgroundWithRequestID(ctx)
	if bg.Err() != nil {
		t.Fatalf("background context must not inherit cancellation")
	}
	if got := requestIDFromContext(bg); got != "req-1" {
		t.Fatalf("expected request id to carry over, got %q", got)
	}
	if got := requestIDFromContext(backgroundWithRequestID(context.Background())); got != "" {
		t.Fatalf("unexpected request id %q", got)
	}
}

func TestErrorMessagesAreCappedOnRuneBoundaries(t *testing.T) {
	msg := "x" + strings.Repeat("é", 600)
	err := providerFailure(errors.New(msg))
	if !utf8.ValidString(err.Message) {
		t.Fatalf("message is not valid utf-8: %q", err.Message)
	}
	if n := utf8.RuneCountInString(err.Message); n != 500 {
		t.Fatalf("expected 500 runes, got %d", n)
	}
	if !strings.HasPrefix(msg, err.Message) {
		t.Fatalf("message should be a prefix of the original")
	}

	short := newError(CategoryProvider, nil, "upstream said %s", "ça va")
	if short.Message != "upstream said ça va" {
		t.Fatalf("short messages are kept, got %q", short.Message)
	}
}
