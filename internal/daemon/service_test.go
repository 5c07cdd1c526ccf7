package daemon

import (
	"testing"
	"time"
)

func TestNewAppliesConfigFloors(t *testing.T) {
	s := New(Config{Interval: time.Second}, nil)

	if s.cfg.Interval != 5*time.Minute {
		t.Fatalf("Interval = %v, want 5m default for too-short values", s.cfg.Interval)
	}
	if s.cfg.BackfillLimit != 5 {
		t.Fatalf("BackfillLimit = %d, want 5 default", s.cfg.BackfillLimit)
	}
}

func TestStatusReflectsPasses(t *testing.T) {
	s := New(Config{Interval: time.Minute, WarmLimit: 3, BackfillLimit: 2}, nil)

	s.mu.Lock()
	s.warmed = 3
	s.backfilled = 4
	s.passCount = 2
	s.lastPassAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.mu.Unlock()

	status := s.Status()
	if status.Warmed != 3 {
		t.Fatalf("Warmed = %d, want 3", status.Warmed)
	}
	if status.Backfilled != 4 {
		t.Fatalf("Backfilled = %d, want 4", status.Backfilled)
	}
	if status.PassCount != 2 {
		t.Fatalf("PassCount = %d, want 2", status.PassCount)
	}
	if status.IntervalSec != 60 {
		t.Fatalf("IntervalSec = %d, want 60", status.IntervalSec)
	}
	if status.LastPassAt.IsZero() {
		t.Fatal("LastPassAt unexpectedly zero")
	}
}
