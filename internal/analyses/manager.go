package analyses

import (
	"context"
	"errors"
	"sync"
	"time"

	"resumind-backend/internal/shared/telemetry"
)

// DefaultFailedTTL is how long a failed run waits for retry, skip or cancel
// before it is expired and its document released.
const DefaultFailedTTL = 30 * time.Minute

const (
	finishedLimit = 1024
	failedLimit   = 256
)

// Factory builds a fresh orchestrator for one request. The observer must be
// registered on the returned orchestrator.
type Factory func(observer Observer) *Orchestrator

// Manager tracks in-progress runs by record id. Runs are dropped once they
// succeed or are cancelled; their last view is kept for status queries.
// Failed runs left alone longer than the failed TTL are expired.
type Manager struct {
	factory   Factory
	records   *RecordStore
	failedTTL time.Duration
	now       func() time.Time

	mu          sync.Mutex
	runs        map[string]*Orchestrator
	failedSince map[string]time.Time
	finished    map[string]View
	order       []string
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithFailedTTL sets how long a failed run is kept. Non-positive values are ignored.
func WithFailedTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.failedTTL = d
		}
	}
}

// WithManagerClock overrides the clock used for expiry.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a manager creating orchestrators with factory.
func NewManager(factory Factory, records *RecordStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		factory:     factory,
		records:     records,
		failedTTL:   DefaultFailedTTL,
		now:         time.Now,
		runs:        make(map[string]*Orchestrator),
		failedSince: make(map[string]time.Time),
		finished:    make(map[string]View),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start validates req and launches a run in the background.
func (m *Manager) Start(ctx context.Context, req Request) (View, error) {
	m.expireFailed()
	o := m.factory(m.observe)
	id, _, err := o.Start(backgroundWithRequestID(ctx), req)
	if err != nil {
		return View{}, err
	}

	m.mu.Lock()
	m.runs[id] = o
	m.mu.Unlock()
	// The run may already have finished before it was registered.
	m.observe(o.View())
	return o.View(), nil
}

// Status returns the presentation state of id.
func (m *Manager) Status(ctx context.Context, id string) (View, error) {
	m.expireFailed()
	m.mu.Lock()
	o, ok := m.runs[id]
	view, done := m.finished[id]
	m.mu.Unlock()
	if ok {
		return o.View(), nil
	}
	if done {
		return view, nil
	}

	rec, err := m.records.Load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return storedView(rec), nil
}

// storedView answers for a run that is no longer tracked. A record without
// a report or skip marker belongs to a run that stopped before finishing.
func storedView(rec Record) View {
	switch {
	case rec.Report != nil:
		return NewView(rec.ID, State{Stage: StageSucceeded})
	case rec.Skipped:
		return NewView(rec.ID, State{Stage: StageSucceeded, Skipped: true})
	default:
		return NewView(rec.ID, State{Stage: StageIdle})
	}
}

// Retry resumes a failed run in the background.
func (m *Manager) Retry(ctx context.Context, id string) (View, error) {
	o, err := m.lookup(ctx, id)
	if err != nil {
		return View{}, err
	}
	if _, err := o.StartRetry(backgroundWithRequestID(ctx)); err != nil {
		return View{}, err
	}
	return o.View(), nil
}

// Skip finishes a failed run without a report.
func (m *Manager) Skip(ctx context.Context, id string) (View, error) {
	o, err := m.lookup(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := o.SkipAndProceed(backgroundWithRequestID(ctx)); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return View{}, err
		}
		return o.View(), err
	}
	return o.View(), nil
}

// Cancel aborts a failed or invoking run.
func (m *Manager) Cancel(ctx context.Context, id string) (View, error) {
	o, err := m.lookup(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := o.Cancel(); err != nil {
		return View{}, err
	}
	return o.View(), nil
}

// Record returns the persisted record for id.
func (m *Manager) Record(ctx context.Context, id string) (Record, error) {
	return m.records.Load(ctx, id)
}

// Active returns the number of runs still tracked.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

func (m *Manager) lookup(ctx context.Context, id string) (*Orchestrator, error) {
	m.mu.Lock()
	o, ok := m.runs[id]
	_, done := m.finished[id]
	m.mu.Unlock()
	if ok {
		return o, nil
	}
	if done {
		return nil, ErrInvalidTransition
	}
	if _, err := m.records.Load(ctx, id); err == nil {
		return nil, ErrInvalidTransition
	}
	return nil, ErrNotFound
}

func (m *Manager) observe(v View) {
	if v.AnalysisID == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[v.AnalysisID]; !ok {
		return
	}
	switch v.Stage {
	case StageFailed:
		if _, ok := m.failedSince[v.AnalysisID]; !ok {
			m.failedSince[v.AnalysisID] = m.now()
		}
	case StageSucceeded, StageIdle:
		delete(m.runs, v.AnalysisID)
		delete(m.failedSince, v.AnalysisID)
		m.rememberLocked(v)
	default:
		delete(m.failedSince, v.AnalysisID)
	}
}

func (m *Manager) rememberLocked(v View) {
	if _, ok := m.finished[v.AnalysisID]; !ok {
		m.order = append(m.order, v.AnalysisID)
	}
	m.finished[v.AnalysisID] = v
	for len(m.order) > finishedLimit {
		delete(m.finished, m.order[0])
		m.order = m.order[1:]
	}
}

// expireFailed drops failed runs older than the TTL, and the oldest ones
// beyond failedLimit. Runs resumed in the meantime are left alone.
func (m *Manager) expireFailed() {
	now := m.now()
	type expired struct {
		o  *Orchestrator
		ev *transition
	}
	var events []expired

	m.mu.Lock()
	expire := func(id string) {
		delete(m.failedSince, id)
		o, ok := m.runs[id]
		if !ok {
			return
		}
		ev, ok := o.expire()
		if !ok {
			return
		}
		delete(m.runs, id)
		m.rememberLocked(NewView(id, State{Stage: StageIdle}))
		events = append(events, expired{o: o, ev: ev})
	}
	for id, since := range m.failedSince {
		if now.Sub(since) >= m.failedTTL {
			expire(id)
		}
	}
	for len(m.failedSince) > failedLimit {
		var oldest string
		var oldestAt time.Time
		for id, since := range m.failedSince {
			if oldest == "" || since.Before(oldestAt) {
				oldest, oldestAt = id, since
			}
		}
		expire(oldest)
	}
	m.mu.Unlock()

	for _, e := range events {
		telemetry.Info("analysis.expired", map[string]any{"analysis_id": e.ev.id, "request_id": e.ev.requestID})
		e.o.emit(e.ev)
	}
}
