// Package daemon runs the background cache maintenance loop: an initial
// warming pass over recently active projects, then periodic backfill of
// projects that have no cache entry yet.
package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/theirongolddev/agentlens/internal/service"
)

// Config controls the maintenance runtime behavior.
type Config struct {
	Interval      time.Duration
	WarmLimit     int
	BackfillLimit int
}

// Status is a snapshot of the maintenance loop's progress.
type Status struct {
	StartedAt     time.Time `json:"started_at"`
	LastPassAt    time.Time `json:"last_pass_at"`
	PassCount     int64     `json:"pass_count"`
	Warmed        int       `json:"warmed"`
	Backfilled    int       `json:"backfilled"`
	IntervalSec   int       `json:"interval_sec"`
	WarmLimit     int       `json:"warm_limit"`
	BackfillLimit int       `json:"backfill_limit"`
}

// Service drives warming and backfill against the analytics service.
type Service struct {
	cfg Config
	svc *service.Service

	mu         sync.RWMutex
	startedAt  time.Time
	lastPassAt time.Time
	passCount  int64
	warmed     int
	backfilled int
}

// New returns a maintenance service with the provided config.
func New(cfg Config, svc *service.Service) *Service {
	if cfg.Interval < 10*time.Second {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BackfillLimit < 1 {
		cfg.BackfillLimit = 5
	}

	return &Service{
		cfg:       cfg,
		svc:       svc,
		startedAt: time.Now(),
	}
}

// Run warms once, then backfills on a ticker until ctx is canceled. The
// underlying jobs yield between projects, so cancellation is prompt.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.WarmLimit > 0 {
		warmed := s.svc.Warm(ctx, s.cfg.WarmLimit)
		s.mu.Lock()
		s.warmed += warmed
		s.mu.Unlock()
	}

	s.passOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.passOnce(ctx)
		}
	}
}

func (s *Service) passOnce(ctx context.Context) {
	processed := s.svc.ProcessUncached(ctx, s.cfg.BackfillLimit)

	s.mu.Lock()
	s.backfilled += processed
	s.lastPassAt = time.Now()
	s.passCount++
	s.mu.Unlock()
}

// Status reports the loop's counters.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:     s.startedAt,
		LastPassAt:    s.lastPassAt,
		PassCount:     s.passCount,
		Warmed:        s.warmed,
		Backfilled:    s.backfilled,
		IntervalSec:   int(s.cfg.Interval / time.Second),
		WarmLimit:     s.cfg.WarmLimit,
		BackfillLimit: s.cfg.BackfillLimit,
	}
}
