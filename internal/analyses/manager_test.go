package analyses

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestManager(prov *fakeProvider, records *RecordStore, opts ...ManagerOption) *Manager {
	return NewManager(func(observer Observer) *Orchestrator {
		return NewOrchestrator(Deps{
			Converter: &fakeConverter{},
			Extractor: &fakeExtractor{text: resumeText},
			Provider:  prov,
			Records:   records,
		}, WithObserver(observer))
	}, records, opts...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func waitForManagerStage(t *testing.T, m *Manager, id string, want Stage) View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, err := m.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if view.Stage == want {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("stage %s not reached", want)
	return View{}
}

// waitForFailedTracked waits until the manager has seen id fail.
func waitForFailedTracked(t *testing.T, m *Manager, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		_, ok := m.failedSince[id]
		m.mu.Unlock()
		if ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("failure of %s not tracked", id)
}

func TestManagerDropsFinishedRuns(t *testing.T) {
	prov := &fakeProvider{results: []providerResult{{raw: sampleJSON(t)}}}
	records := NewRecordStore(newCountingKV())
	m := newTestManager(prov, records)

	view, err := m.Start(context.Background(), Request{Document: testDocument()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForManagerStage(t, m, view.AnalysisID, StageSucceeded)
	if m.Active() != 0 {
		t.Fatalf("expected no active runs, got %d", m.Active())
	}
	if _, err := m.Retry(context.Background(), view.AnalysisID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestManagerStatusFallsBackToRecords(t *testing.T) {
	prov := &fakeProvider{}
	records := NewRecordStore(newCountingKV())
	first := newTestManager(prov, records)

	view, err := first.Start(context.Background(), Request{Document: testDocument(), SkipAnalysis: true})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForManagerStage(t, first, view.AnalysisID, StageSucceeded)

	second := newTestManager(prov, records)
	got, err := second.Status(context.Background(), view.AnalysisID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Stage != StageSucceeded || !got.Skipped {
		t.Fatalf("unexpected view: %+v", got)
	}
	if _, err := second.Status(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := second.Cancel(context.Background(), view.AnalysisID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for a stored record, got %v", err)
	}
}

func TestManagerKeepsFailedRuns(t *testing.T) {
	prov := &fakeProvider{results: []providerResult{{raw: "nope"}}}
	records := NewRecordStore(newCountingKV())
	m := newTestManager(prov, records)

	view, err := m.Start(context.Background(), Request{Document: testDocument()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForManagerStage(t, m, view.AnalysisID, StageFailed)
	if m.Active() != 1 {
		t.Fatalf("failed runs stay active, got %d", m.Active())
	}

	skipped, err := m.Skip(context.Background(), view.AnalysisID)
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if skipped.Stage != StageSucceeded || !skipped.Skipped {
		t.Fatalf("unexpected view: %+v", skipped)
	}
	if m.Active() != 0 {
		t.Fatalf("expected run to be dropped")
	}
}

func TestManagerStartValidation(t *testing.T) {
	m := newTestManager(&fakeProvider{}, NewRecordStore(newCountingKV()))

	_, err := m.Start(context.Background(), Request{})
	perr, ok := AsError(err)
	if !ok || perr.Category != CategoryValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if m.Active() != 0 {
		t.Fatalf("rejected runs must not be tracked")
	}
}

func TestManagerExpiresAbandonedFailedRuns(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	prov := &fakeProvider{results: []providerResult{{raw: "nope"}}}
	records := NewRecordStore(newCountingKV())
	m := newTestManager(prov, records, WithFailedTTL(time.Minute), WithManagerClock(clock.Now))

	var ids []string
	for i := 0; i < 5; i++ {
		view, err := m.Start(context.Background(), Request{Document: testDocument()})
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		waitForManagerStage(t, m, view.AnalysisID, StageFailed)
		waitForFailedTracked(t, m, view.AnalysisID)
		ids = append(ids, view.AnalysisID)
	}
	if m.Active() != 5 {
		t.Fatalf("expected 5 failed runs, got %d", m.Active())
	}

	clock.Advance(30 * time.Second)
	if _, err := m.Status(context.Background(), ids[0]); err != nil {
		t.Fatalf("status: %v", err)
	}
	if m.Active() != 5 {
		t.Fatalf("runs within the ttl must stay, got %d", m.Active())
	}

	clock.Advance(time.Minute)
	view, err := m.Status(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if m.Active() != 0 {
		t.Fatalf("expected expired runs to be dropped, got %d", m.Active())
	}
	if view.Stage != StageIdle || view.CanRetry || view.CanSkip {
		t.Fatalf("unexpected view after expiry: %+v", view)
	}
	if _, err := m.Retry(context.Background(), ids[1]); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition after expiry, got %v", err)
	}
	rec, err := m.Record(context.Background(), ids[2])
	if err != nil || rec.Report != nil {
		t.Fatalf("partial record should survive expiry: %+v, %v", rec, err)
	}
}

func TestManagerKeepsResumedRunsPastTTL(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	prov := &fakeProvider{results: []providerResult{{raw: "nope"}, {raw: "still nope"}}}
	records := NewRecordStore(newCountingKV())
	m := newTestManager(prov, records, WithFailedTTL(time.Minute), WithManagerClock(clock.Now))

	view, err := m.Start(context.Background(), Request{Document: testDocument()})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForManagerStage(t, m, view.AnalysisID, StageFailed)
	waitForFailedTracked(t, m, view.AnalysisID)

	clock.Advance(50 * time.Second)
	if _, err := m.Retry(context.Background(), view.AnalysisID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	waitForManagerStage(t, m, view.AnalysisID, StageFailed)
	waitForFailedTracked(t, m, view.AnalysisID)

	clock.Advance(30 * time.Second)
	got, err := m.Status(context.Background(), view.AnalysisID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Stage != StageFailed || m.Active() != 1 {
		t.Fatalf("a retried run restarts its ttl: %+v active=%d", got, m.Active())
	}
}

func TestManagerStatusOfUnfinishedStoredRecord(t *testing.T) {
	kvStore := newCountingKV()
	records := NewRecordStore(kvStore)
	partial := Record{ID: "partial-1", CreatedAt: time.Now().UTC()}
	if err := records.Save(context.Background(), partial); err != nil {
		t.Fatalf("save: %v", err)
	}

	m := newTestManager(&fakeProvider{}, records)
	view, err := m.Status(context.Background(), "partial-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if view.Stage != StageIdle || view.Skipped || view.CanRetry {
		t.Fatalf("an unfinished record must not read as succeeded: %+v", view)
	}
}
