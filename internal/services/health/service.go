package health

import (
	"context"
	"errors"
	"time"

	"resumind-backend/internal/llm"
	"resumind-backend/internal/shared/storage/kv"
)

const probeKey = "health:probe"

// Service encapsulates health-related checks.
type Service struct {
	Records  kv.Store
	Provider llm.Provider
	Timeout  time.Duration
}

// Report is the health payload.
type Report struct {
	OK       bool       `json:"ok"`
	Records  string     `json:"records"`
	Provider llm.Status `json:"provider"`
}

// NewService constructs a new health service.
func NewService(records kv.Store, provider llm.Provider) *Service {
	return &Service{Records: records, Provider: provider, Timeout: 2 * time.Second}
}

// Status checks the record store and reports provider readiness. An
// unconfigured provider does not make the service unhealthy because runs
// can still be stored with analysis skipped.
func (s *Service) Status(ctx context.Context) Report {
	rep := Report{OK: true, Records: "ok"}
	if s.Provider != nil {
		rep.Provider = llm.StatusOf(s.Provider)
	}
	if s.Records == nil {
		rep.OK = false
		rep.Records = "missing"
		return rep
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := s.Records.Get(ctx, probeKey); err != nil && !errors.Is(err, kv.ErrNotFound) {
		rep.OK = false
		rep.Records = "unavailable"
	}
	return rep
}
