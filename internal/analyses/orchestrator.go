package analyses

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"resumind-backend/internal/convert"
	"resumind-backend/internal/document"
	"resumind-backend/internal/extract"
	"resumind-backend/internal/llm"
	"resumind-backend/internal/report"
	"resumind-backend/internal/shared/metrics"
	"resumind-backend/internal/shared/storage/object"
	"resumind-backend/internal/shared/telemetry"
)

const (
	DefaultInvokeTimeout = 60 * time.Second
	// MinTextLength is the shortest extracted text, in characters, worth analyzing.
	MinTextLength = 50
)

// Converter renders a document preview.
type Converter interface {
	Convert(ctx context.Context, doc document.Document) (convert.Image, error)
}

// TextExtractor pulls plain text out of a document.
type TextExtractor interface {
	ExtractText(ctx context.Context, doc document.Document, maxPages int) (string, error)
}

// Observer is called after every state transition.
type Observer func(View)

// Deps are the collaborators of an Orchestrator. Objects is optional; without
// it no preview or document artifacts are stored.
type Deps struct {
	Converter Converter
	Extractor TextExtractor
	Provider  llm.Provider
	Records   *RecordStore
	Objects   object.ObjectStore
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInvokeTimeout bounds a single provider call.
func WithInvokeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.invokeTimeout = d
		}
	}
}

// WithMaxPages caps how many pages are read during extraction.
func WithMaxPages(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxPages = n
		}
	}
}

// WithIDGenerator replaces uuid generation for record ids.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithObserver registers fn for state transitions.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, fn)
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

type step int

const (
	stepConvert step = iota
	stepExtract
	stepSavePartial
	stepInvoke
	stepParse
	stepSaveFinal
	stepSkipSave
	stepDone
)

func (s step) stage() Stage {
	switch s {
	case stepConvert:
		return StageConverting
	case stepExtract, stepSavePartial:
		return StageExtracting
	case stepInvoke:
		return StageInvoking
	case stepParse:
		return StageParsing
	case stepDone:
		return StageSucceeded
	default:
		return StagePersisting
	}
}

func (s step) category() Category {
	switch s {
	case stepConvert:
		return CategoryConversion
	case stepExtract:
		return CategoryEmptyText
	case stepInvoke:
		return CategoryProvider
	case stepParse:
		return CategoryParse
	default:
		return CategoryPersistence
	}
}

// resume is where a retry re-enters after a failure at s. A response that
// could not be parsed is discarded and requested again.
func (s step) resume() step {
	if s == stepParse {
		return stepInvoke
	}
	return s
}

// runData is the in-flight copy of a record. It is dropped once the record
// is durable or the run is cancelled.
type runData struct {
	createdAt time.Time
	imageRef  string
	docRef    string
	text      string
	raw       string
	report    *report.Report
}

type transition struct {
	id        string
	requestID string
	from, to  State
}

// Orchestrator drives one analysis request through the pipeline. It is safe
// for concurrent use; State, View and Cancel may be called while a run is
// in progress.
type Orchestrator struct {
	converter     Converter
	extractor     TextExtractor
	provider      llm.Provider
	records       *RecordStore
	objects       object.ObjectStore
	observers     []Observer
	invokeTimeout time.Duration
	maxPages      int
	newID         func() string
	now           func() time.Time

	mu              sync.Mutex
	id              string
	requestID       string
	req             Request
	state           State
	next            step
	busy            bool
	inflight        *slot
	cancelRequested bool
	run             runData
}

// NewOrchestrator builds an idle orchestrator.
func NewOrchestrator(deps Deps, opts ...Option) *Orchestrator {
	provider := deps.Provider
	if provider == nil {
		provider = llm.Unconfigured{}
	}
	o := &Orchestrator{
		converter:     deps.Converter,
		extractor:     deps.Extractor,
		provider:      provider,
		records:       deps.Records,
		objects:       deps.Objects,
		invokeTimeout: DefaultInvokeTimeout,
		maxPages:      extract.DefaultMaxPages,
		newID:         uuid.NewString,
		now:           time.Now,
		state:         State{Stage: StageIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ID returns the record id of the current or last run.
func (o *Orchestrator) ID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.id
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// View returns the presentation state.
func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return NewView(o.id, o.state)
}

// Run executes req to completion and returns the record id. On failure the
// id is still returned together with the *Error, and the run can be resumed
// with Retry or SkipAndProceed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (string, error) {
	id, err := o.begin(ctx, req)
	if err != nil {
		return id, err
	}
	return id, o.execute(ctx)
}

// Start validates req and assigns the record id synchronously, then runs
// the pipeline in the background. done is closed when the run stops.
func (o *Orchestrator) Start(ctx context.Context, req Request) (string, <-chan struct{}, error) {
	id, err := o.begin(ctx, req)
	if err != nil {
		return id, nil, err
	}
	return id, o.spawn(ctx), nil
}

// Retry re-enters the pipeline at the failed stage.
func (o *Orchestrator) Retry(ctx context.Context) error {
	if err := o.beginRetry(); err != nil {
		return err
	}
	return o.execute(ctx)
}

// StartRetry is Retry in the background.
func (o *Orchestrator) StartRetry(ctx context.Context) (<-chan struct{}, error) {
	if err := o.beginRetry(); err != nil {
		return nil, err
	}
	return o.spawn(ctx), nil
}

// SkipAndProceed finishes a failed run without a report. The record is
// persisted with a null report if that has not happened yet.
func (o *Orchestrator) SkipAndProceed(ctx context.Context) error {
	o.mu.Lock()
	if o.busy || !o.state.CanSkip() {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	o.busy = true
	o.next = stepSkipSave
	ev := o.setLocked(State{Stage: StagePersisting})
	o.mu.Unlock()
	o.emit(ev)

	return o.execute(ctx)
}

// Cancel stops a run that is failed or waiting on the provider and returns
// it to idle. A late provider result is discarded. A partial record that
// was already stored is left in place.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	switch {
	case o.state.Stage == StageInvoking && o.inflight != nil:
		o.cancelRequested = true
		s := o.inflight
		o.mu.Unlock()
		s.settle(outcome{cancelled: true})
		return nil
	case o.state.Stage == StageFailed && !o.busy:
		ev := o.toIdleLocked()
		o.mu.Unlock()
		o.emit(ev)
		return nil
	}
	o.mu.Unlock()
	return ErrInvalidTransition
}

func (o *Orchestrator) begin(ctx context.Context, req Request) (string, error) {
	o.mu.Lock()
	rerun := o.state.Stage == StageFailed && o.state.Err != nil && o.state.Err.Category == CategoryValidation
	if o.busy || (o.state.Stage != StageIdle && !rerun) {
		o.mu.Unlock()
		return "", ErrInvalidTransition
	}
	o.requestID = requestIDFromContext(ctx)
	requestID := o.requestID
	var verr *Error
	switch {
	case req.Document.Empty():
		verr = &Error{Category: CategoryValidation, Message: "a resume document is required"}
	case !req.Document.Supported():
		verr = &Error{Category: CategoryValidation, Message: "unsupported document type, upload a PDF or DOCX resume"}
	}
	if verr != nil {
		o.id = ""
		ev := o.setLocked(State{Stage: StageFailed, FailedAt: StageIdle, Err: verr})
		o.mu.Unlock()
		o.emit(ev)
		return "", verr
	}

	o.id = o.newID()
	o.req = req
	o.run = runData{createdAt: o.now().UTC()}
	o.next = stepConvert
	o.busy = true
	o.cancelRequested = false
	ev := o.setLocked(State{Stage: StageConverting})
	id := o.id
	o.mu.Unlock()

	metrics.IncRunStarted()
	telemetry.Info("analysis.started", map[string]any{
		"analysis_id":   id,
		"request_id":    requestID,
		"document_name": req.Document.Name,
		"document_size": len(req.Document.Data),
		"skip_analysis": req.SkipAnalysis,
		"provider":      o.provider.Name(),
	})
	o.emit(ev)
	return id, nil
}

func (o *Orchestrator) beginRetry() error {
	o.mu.Lock()
	if o.busy || !o.state.CanRetry() {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	o.busy = true
	var ev *transition
	if o.next == stepInvoke {
		ev = o.enterInvokingLocked()
	} else {
		ev = o.setLocked(State{Stage: o.next.stage()})
	}
	o.mu.Unlock()

	telemetry.Info("analysis.retry", map[string]any{
		"analysis_id": ev.id,
		"request_id":  ev.requestID,
		"stage":       ev.to.Stage,
	})
	o.emit(ev)
	return nil
}

func (o *Orchestrator) spawn(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = o.execute(ctx)
	}()
	return done
}

func (o *Orchestrator) execute(ctx context.Context) (err error) {
	var current step
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("analysis.panic", map[string]any{
				"analysis_id": o.ID(),
				"error":       fmt.Sprint(rec),
			})
			err = o.fail(current, newError(current.category(), nil, "unexpected error: %v", rec))
		}
	}()

	for {
		o.mu.Lock()
		current = o.next
		o.mu.Unlock()

		var stepErr error
		switch current {
		case stepConvert:
			stepErr = o.convert(ctx)
		case stepExtract:
			stepErr = o.extract(ctx)
		case stepSavePartial:
			stepErr = o.savePartial(ctx)
		case stepInvoke:
			stepErr = o.invoke(ctx)
		case stepParse:
			stepErr = o.parse()
		case stepSaveFinal:
			stepErr = o.saveFinal(ctx)
		case stepSkipSave:
			stepErr = o.skipSave(ctx)
		default:
			return nil
		}
		if stepErr == nil {
			continue
		}

		// invoke has already returned the run to idle and released it.
		if errors.Is(stepErr, ErrCancelled) {
			return ErrCancelled
		}
		if ctx.Err() != nil {
			o.mu.Lock()
			ev := o.toIdleLocked()
			o.mu.Unlock()
			o.emit(ev)
			return ErrCancelled
		}
		perr, ok := AsError(stepErr)
		if !ok {
			perr = newError(current.category(), stepErr, "%v", stepErr)
		}
		return o.fail(current, perr)
	}
}

func (o *Orchestrator) convert(ctx context.Context) error {
	o.enter(StageConverting)

	img, err := o.converter.Convert(ctx, o.req.Document)
	if errors.Is(err, convert.ErrNoPreview) {
		o.run.imageRef = ""
		telemetry.Info("analysis.preview_skipped", map[string]any{
			"analysis_id":   o.id,
			"document_type": o.req.Document.Type(),
		})
		o.advance(stepExtract)
		return nil
	}
	if err != nil {
		return newError(CategoryConversion, err, "failed to convert document to image: %v", err)
	}
	ref := ""
	if o.objects != nil {
		key := object.PreviewKey(o.id)
		if _, err := o.objects.SaveWithKey(ctx, key, img.ContentType, bytes.NewReader(img.Data)); err != nil {
			return newError(CategoryConversion, err, "failed to store preview image: %v", err)
		}
		ref = o.objects.URI(key)
	}
	o.run.imageRef = ref
	telemetry.Info("analysis.converted", map[string]any{
		"analysis_id": o.id,
		"width":       img.Width,
		"height":      img.Height,
	})
	o.advance(stepExtract)
	return nil
}

func (o *Orchestrator) extract(ctx context.Context) error {
	o.enter(StageExtracting)

	text, err := o.extractor.ExtractText(ctx, o.req.Document, o.maxPages)
	if err != nil {
		return newError(CategoryEmptyText, err, "failed to extract text from document: %v", err)
	}
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n < MinTextLength {
		return newError(CategoryEmptyText, nil,
			"could not extract meaningful text (%d characters), ensure it is a valid text-based resume", n)
	}
	o.run.text = text
	telemetry.Info("analysis.extracted", map[string]any{
		"analysis_id": o.id,
		"length":      len(text),
	})
	o.advance(stepSavePartial)
	return nil
}

func (o *Orchestrator) savePartial(ctx context.Context) error {
	if o.objects != nil && o.run.docRef == "" {
		key, err := object.DocumentKey(o.id, o.req.Document.Name)
		if err != nil {
			return newError(CategoryPersistence, err, "failed to store document: %v", err)
		}
		if _, err := o.objects.SaveWithKey(ctx, key, o.req.Document.Type(), bytes.NewReader(o.req.Document.Data)); err != nil {
			return newError(CategoryPersistence, err, "failed to store document: %v", err)
		}
		o.run.docRef = o.objects.URI(key)
	}
	if err := o.records.Save(ctx, o.record(nil, o.req.SkipAnalysis)); err != nil {
		return newError(CategoryPersistence, err, "failed to save analysis record: %v", err)
	}

	if o.req.SkipAnalysis {
		telemetry.Info("analysis.skipped", map[string]any{"analysis_id": o.id, "requested": true})
		o.succeed(true)
		return nil
	}
	o.advance(stepInvoke)
	return nil
}

func (o *Orchestrator) invoke(ctx context.Context) error {
	o.mu.Lock()
	var ev *transition
	if o.inflight == nil {
		ev = o.enterInvokingLocked()
	}
	s := o.inflight
	skipCall := o.cancelRequested
	o.mu.Unlock()
	o.emit(ev)

	started := time.Now()
	callCtx, cancelCall := context.WithCancel(ctx)
	if !skipCall {
		if !o.provider.IsConfigured() {
			s.settle(outcome{err: llm.NotConfigured(o.provider.Name())})
		} else {
			payload := o.payload()
			go func() {
				defer func() {
					if rec := recover(); rec != nil {
						s.settle(outcome{err: fmt.Errorf("provider panic: %v", rec)})
					}
				}()
				raw, err := o.provider.Invoke(callCtx, payload)
				s.settle(outcome{raw: raw, err: err})
			}()
		}
	}
	timer := time.AfterFunc(o.invokeTimeout, func() {
		s.settle(outcome{timedOut: true})
	})
	stopWatch := context.AfterFunc(ctx, func() {
		s.settle(outcome{cancelled: true})
	})

	res := s.wait()
	timer.Stop()
	stopWatch()
	cancelCall()
	elapsed := time.Since(started)
	metrics.ObserveProviderDurationMs(float64(elapsed.Milliseconds()))

	o.mu.Lock()
	o.inflight = nil
	if o.cancelRequested || res.cancelled {
		ev := o.toIdleLocked()
		o.mu.Unlock()
		o.emit(ev)
		return ErrCancelled
	}
	o.mu.Unlock()

	telemetry.Info("llm.response", map[string]any{
		"analysis_id": o.id,
		"provider":    o.provider.Name(),
		"model":       o.provider.Model(),
		"duration_ms": elapsed.Milliseconds(),
		"timed_out":   res.timedOut,
		"failed":      res.err != nil,
		"length":      len(res.raw),
	})

	switch {
	case res.timedOut:
		return &Error{
			Category: CategoryTimeout,
			Message:  fmt.Sprintf("analysis took longer than %s, try again or skip analysis", o.invokeTimeout),
		}
	case res.err != nil:
		return providerFailure(res.err)
	case strings.TrimSpace(res.raw) == "":
		return &Error{Category: CategoryEmptyResponse, Message: "no response from analysis service"}
	}
	o.run.raw = res.raw
	o.advance(stepParse)
	return nil
}

func (o *Orchestrator) parse() error {
	o.enter(StageParsing)

	rep, err := report.Parse(o.run.raw)
	if err != nil {
		e := newError(CategoryParse, err, "failed to parse analysis response: %s", report.Preview(o.run.raw))
		var perr *report.ParseError
		if errors.As(err, &perr) {
			e.RawPreview = perr.RawPreview
		}
		o.run.raw = ""
		return e
	}
	o.run.raw = ""
	o.run.report = &rep
	telemetry.Info("analysis.parsed", map[string]any{
		"analysis_id":   o.id,
		"overall_score": rep.OverallScore,
	})
	o.advance(stepSaveFinal)
	return nil
}

func (o *Orchestrator) saveFinal(ctx context.Context) error {
	o.enter(StagePersisting)

	if err := o.records.Save(ctx, o.record(o.run.report, false)); err != nil {
		return newError(CategoryPersistence, err, "failed to save analysis result: %v", err)
	}
	o.succeed(false)
	return nil
}

func (o *Orchestrator) skipSave(ctx context.Context) error {
	o.enter(StagePersisting)

	if err := o.records.Save(ctx, o.record(nil, true)); err != nil {
		return newError(CategoryPersistence, err, "failed to save analysis record: %v", err)
	}
	telemetry.Info("analysis.skipped", map[string]any{"analysis_id": o.id, "requested": false})
	o.succeed(true)
	return nil
}

func (o *Orchestrator) payload() llm.Payload {
	p := llm.Payload{
		Text:         o.run.text,
		Instructions: llm.Instructions(o.req.JobTitle, o.req.JobDescription),
	}
	if o.run.docRef != "" {
		p.Document = &llm.DocumentRef{
			URI:       o.run.docRef,
			MediaType: o.req.Document.Type(),
			Data:      o.req.Document.Data,
		}
	}
	return p
}

func (o *Orchestrator) record(rep *report.Report, skipped bool) Record {
	return Record{
		ID:                o.id,
		CreatedAt:         o.run.createdAt,
		ImageReference:    o.run.imageRef,
		DocumentReference: o.run.docRef,
		CompanyName:       strings.TrimSpace(o.req.CompanyName),
		JobTitle:          strings.TrimSpace(o.req.JobTitle),
		JobDescription:    strings.TrimSpace(o.req.JobDescription),
		Report:            rep,
		Skipped:           skipped,
	}
}

func (o *Orchestrator) enter(stage Stage) {
	o.mu.Lock()
	if o.state.Stage == stage {
		o.mu.Unlock()
		return
	}
	ev := o.setLocked(State{Stage: stage})
	o.mu.Unlock()
	o.emit(ev)
}

func (o *Orchestrator) advance(next step) {
	o.mu.Lock()
	o.next = next
	o.mu.Unlock()
}

func (o *Orchestrator) succeed(skipped bool) {
	o.mu.Lock()
	o.next = stepDone
	o.busy = false
	o.run = runData{}
	o.req = Request{}
	ev := o.setLocked(State{Stage: StageSucceeded, Skipped: skipped})
	o.mu.Unlock()

	metrics.IncRunSucceeded()
	if skipped {
		metrics.IncRunSkipped()
	}
	o.emit(ev)
}

func (o *Orchestrator) fail(at step, e *Error) error {
	o.mu.Lock()
	o.next = at.resume()
	o.busy = false
	o.inflight = nil
	ev := o.setLocked(State{Stage: StageFailed, FailedAt: at.stage(), Err: e})
	o.mu.Unlock()

	metrics.IncRunFailed()
	telemetry.Error("analysis.failed", map[string]any{
		"analysis_id":   ev.id,
		"request_id":    ev.requestID,
		"stage":         at.stage(),
		"category":      e.Category,
		"provider_kind": e.Kind,
		"retryable":     e.Retryable(),
		"skip_eligible": e.SkipEligible(),
		"error":         e.Message,
	})
	o.emit(ev)
	return e
}

func (o *Orchestrator) enterInvokingLocked() *transition {
	o.inflight = newSlot()
	o.cancelRequested = false
	return o.setLocked(State{Stage: StageInvoking})
}

// expire returns an abandoned failed run to idle and drops its document.
// It reports false when the run is no longer failed.
func (o *Orchestrator) expire() (*transition, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy || o.state.Stage != StageFailed {
		return nil, false
	}
	return o.toIdleLocked(), true
}

func (o *Orchestrator) toIdleLocked() *transition {
	if o.state.Stage == StageIdle {
		return nil
	}
	o.busy = false
	o.inflight = nil
	o.cancelRequested = false
	o.next = stepConvert
	o.run = runData{}
	o.req = Request{}
	metrics.IncRunCancelled()
	return o.setLocked(State{Stage: StageIdle})
}

func (o *Orchestrator) setLocked(to State) *transition {
	from := o.state
	o.state = to
	return &transition{id: o.id, requestID: o.requestID, from: from, to: to}
}

func (o *Orchestrator) emit(ev *transition) {
	if ev == nil {
		return
	}
	fields := map[string]any{
		"analysis_id": ev.id,
		"from":        ev.from.Stage,
		"to":          ev.to.Stage,
	}
	if ev.requestID != "" {
		fields["request_id"] = ev.requestID
	}
	telemetry.Info("analysis.transition", fields)

	view := NewView(ev.id, ev.to)
	for _, fn := range o.observers {
		fn(view)
	}
}
